package sensors

// ParameterSpec is static metadata for a monitored parameter.
type ParameterSpec struct {
	Key        ParameterKey `json:"key"`
	Name       string       `json:"name"`
	Unit       string       `json:"unit"`
	Min        float64      `json:"min"`
	Max        float64      `json:"max"`
	Importance string       `json:"importance"`

	Satisfactory string `json:"-"`
	TooHigh      string `json:"-"`
	TooHighFix   string `json:"-"`
	TooLow       string `json:"-"`
	TooLowFix    string `json:"-"`
}

var specs = map[ParameterKey]ParameterSpec{
	ParamAirTemp: {
		Key:          ParamAirTemp,
		Name:         "Air Temperature",
		Unit:         "°C",
		Min:          22,
		Max:          32,
		Importance:   "Temperature affects plant growth rate, nutrient uptake, and photosynthesis efficiency.",
		Satisfactory: "The air temperature is within the optimal range for plant growth.",
		TooHigh:      "Temperature is too high. This causes heat stress, reduced growth, and increased evaporation.",
		TooHighFix:   "Increase shading, improve ventilation, use misting or evaporative cooling.",
		TooLow:       "Temperature is too low. This causes slowed metabolism and poor nutrient absorption.",
		TooLowFix:    "Insulate the hydroponic setup, use a greenhouse or heating pads.",
	},
	ParamHumidity: {
		Key:          ParamHumidity,
		Name:         "Humidity",
		Unit:         "%",
		Min:          55,
		Max:          75,
		Importance:   "Controls transpiration rate and prevents plant dehydration. Pechay prefers moderate humidity.",
		Satisfactory: "The humidity level is within the optimal range for plant growth.",
		TooHigh:      "Humidity is too high. This encourages mold, fungi, and root diseases.",
		TooHighFix:   "Improve airflow, reduce misting, use a dehumidifier.",
		TooLow:       "Humidity is too low. This causes increased water loss and slower growth.",
		TooLowFix:    "Use misting, increase water surface area, or install a humidifier.",
	},
	ParamWaterTemp: {
		Key:          ParamWaterTemp,
		Name:         "Water Temperature",
		Unit:         "°C",
		Min:          18,
		Max:          24,
		Importance:   "Regulates root zone temperature, influences oxygen availability, nutrient uptake, and microbial activity.",
		Satisfactory: "The water temperature is within the optimal range for root health.",
		TooHigh:      "Water temperature is too high. This reduces dissolved oxygen levels and promotes root rot and pathogens.",
		TooHighFix:   "Shade the reservoir.",
		TooLow:       "Water temperature is too low. This slows plant metabolism, reduces nutrient uptake, and stunts root growth.",
		TooLowFix:    "Use a water heater or insulate the reservoir.",
	},
	ParamPH: {
		Key:          ParamPH,
		Name:         "pH Level",
		Unit:         "",
		Min:          5.5,
		Max:          6.5,
		Importance:   "Determines nutrient availability. Incorrect pH locks out essential nutrients.",
		Satisfactory: "The pH level is within the optimal range for nutrient absorption.",
		TooHigh:      "pH is too high. This causes nutrient deficiencies (iron, manganese, phosphorus).",
		TooHighFix:   "Add pH Down (phosphoric acid or citric acid).",
		TooLow:       "pH is too low. This causes toxicity of some nutrients and root damage.",
		TooLowFix:    "Add pH Up (potassium hydroxide or lime solution).",
	},
	ParamTDS: {
		Key:          ParamTDS,
		Name:         "Total Dissolved Solids",
		Unit:         "ppm",
		Min:          800,
		Max:          1400,
		Importance:   "Indicates nutrient concentration in water, essential for plant health.",
		Satisfactory: "The TDS level is within the optimal range for plant nutrition.",
		TooHigh:      "TDS is too high. This risks over-fertilization and root burn.",
		TooHighFix:   "Dilute with fresh water, flush system.",
		TooLow:       "TDS is too low. This causes nutrient deficiency and slow growth.",
		TooLowFix:    "Add nutrient solution gradually.",
	},
}

const (
	tdsZeroImplication = "TDS reading is zero. The sensor may be faulty, not properly submerged in water, or there might be an issue with the code."
	tdsZeroAction      = "Try putting the sensor in water. If the reading remains at zero, check the sensor connections or replace it."
	notApplicable      = "Not applicable"
	unknownParameter   = "Unknown parameter"
)

// Spec returns the spec for key.
func Spec(key ParameterKey) (ParameterSpec, bool) {
	spec, ok := specs[key]
	return spec, ok
}

// Specs returns all parameter specs in display order.
func Specs() []ParameterSpec {
	out := make([]ParameterSpec, 0, len(specs))
	for _, key := range Keys() {
		out = append(out, specs[key])
	}
	return out
}
