package ctdf

// Station is a stop known to the feeds, by id and by the names the feeds use for it
type Station struct {
	PrimaryIdentifier string   `yaml:"id" validate:"required"`
	PrimaryName       string   `yaml:"name" validate:"required"`
	OtherNames        []string `yaml:"other_names"`
}

func (s *Station) HasName(name string) bool {
	if s.PrimaryName == name {
		return true
	}

	for _, other := range s.OtherNames {
		if other == name {
			return true
		}
	}

	return false
}
