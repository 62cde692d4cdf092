package flood

import (
	"strconv"

	"floodsim/internal/core"
)

// Parameters implements core.ParameterProvider.
func (s *Sim) Parameters() core.ParameterSnapshot {
	o := s.engine.Options()
	info := s.engine.Info()
	groups := []core.ParameterGroup{
		{
			Name: "Status",
			Params: []core.Parameter{
				stringParam("status", "Status", string(info.Status)),
				uint64Param("tick", "Tick", info.Tick),
				floatParam("total_water", "Total water (m3)", info.TotalWater),
			},
		},
		{
			Name: "Grid",
			Params: []core.Parameter{
				intParam("grid_size", "Grid size", o.GridSize),
				floatParam("cell_size", "Cell size (m)", o.CellSize),
				floatParam("center_lon", "Centre lon", o.CenterLon),
				floatParam("center_lat", "Centre lat", o.CenterLat),
				boolParam("confine", "Confined edges", o.SimulationConfine),
			},
		},
		{
			Name: "Physics",
			Params: []core.Parameter{
				floatParam("time_step", "Time step (s)", o.TimeStep),
				floatParam("gravity", "Gravity", o.Gravity),
				floatParam("cushion_factor", "Cushion factor", o.CushionFactor),
				floatParam("evaporation_rate", "Evaporation rate", o.EvaporationRate),
				floatParam("max_height", "Max height", o.MaxHeight),
				floatParam("max_flux", "Max flux", o.MaxFlux),
				floatParam("stability", "Stability number", o.StabilityNumber()),
			},
		},
		{
			Name: "Rain",
			Params: []core.Parameter{
				floatParam("rain_amount", "Rain amount", o.RainAmount),
				floatParam("rain_max_precipitation", "Rain max precipitation", o.RainMaxPrecipitation),
				floatParam("rain_falloff", "Rain falloff", o.RainFalloff),
			},
		},
		{
			Name: "Sources",
			Params: []core.Parameter{
				floatParam("source_amount", "Source amount", o.WaterSourceAmount),
				floatParam("source_area", "Source radius", o.WaterSourceArea),
				floatParam("sink_amount", "Sink amount", o.WaterMinusSourceAmount),
				floatParam("sink_area", "Sink radius", o.WaterMinusSourceArea),
				floatParam("seawall_height", "Sea wall height", o.WaterSeawallHeight),
				floatParam("seawall_area", "Sea wall radius", o.WaterSeawallArea),
			},
		},
	}
	return core.ParameterSnapshot{Groups: groups}
}

func intParam(key, label string, value int) core.Parameter {
	return core.Parameter{
		Key:   key,
		Label: label,
		Type:  core.ParamTypeInt,
		Value: strconv.Itoa(value),
	}
}

func uint64Param(key, label string, value uint64) core.Parameter {
	return core.Parameter{
		Key:   key,
		Label: label,
		Type:  core.ParamTypeInt,
		Value: strconv.FormatUint(value, 10),
	}
}

func floatParam(key, label string, value float64) core.Parameter {
	return core.Parameter{
		Key:   key,
		Label: label,
		Type:  core.ParamTypeFloat,
		Value: strconv.FormatFloat(value, 'f', -1, 64),
	}
}

func boolParam(key, label string, value bool) core.Parameter {
	return core.Parameter{
		Key:   key,
		Label: label,
		Type:  core.ParamTypeBool,
		Value: strconv.FormatBool(value),
	}
}

func stringParam(key, label, value string) core.Parameter {
	return core.Parameter{
		Key:   key,
		Label: label,
		Type:  core.ParamTypeString,
		Value: value,
	}
}
