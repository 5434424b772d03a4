package debugstat

type StatValue struct {
	Key   string `yaml:"key" json:"key"`
	Value any    `yaml:"value" json:"value"`
}

type StatType struct {
	Type   string      `yaml:"type" json:"type"`
	Values []StatValue `yaml:"values" json:"values"`
}

// StatSummary is a point-in-time view of every registered provider
type StatSummary struct {
	Stats []StatType `yaml:"stats" json:"stats"`
}
