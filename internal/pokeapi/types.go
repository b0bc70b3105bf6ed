package pokeapi

// NamedResource is the ubiquitous {name, url} pair of the catalog API.
type NamedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ListResponse is one page of the paginated pokemon catalog.
type ListResponse struct {
	Count   int         `json:"count"`
	Results []ListEntry `json:"results"`
}

// ListEntry points at the detail payload of one catalog entry.
type ListEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Pokemon is the primary detail payload.
type Pokemon struct {
	ID             int           `json:"id"`
	Name           string        `json:"name"`
	Height         int           `json:"height"`
	Weight         int           `json:"weight"`
	BaseExperience int           `json:"base_experience"`
	Species        NamedResource `json:"species"`
	Sprites        Sprites       `json:"sprites"`
	Cries          Cries         `json:"cries"`
	Types          []TypeSlot    `json:"types"`
	Abilities      []AbilitySlot `json:"abilities"`
	Stats          []StatValue   `json:"stats"`
}

// Sprites carries the image URLs of a pokemon payload.
type Sprites struct {
	FrontDefault string       `json:"front_default"`
	Other        OtherSprites `json:"other"`
}

// OtherSprites holds the alternative artwork sets.
type OtherSprites struct {
	OfficialArtwork ArtworkSprites `json:"official-artwork"`
}

// ArtworkSprites is the official artwork sprite set.
type ArtworkSprites struct {
	FrontDefault string `json:"front_default"`
}

// Cries carries the audio URLs the catalog itself knows about.
type Cries struct {
	Latest string `json:"latest"`
	Legacy string `json:"legacy"`
}

// TypeSlot is one slotted type reference.
type TypeSlot struct {
	Slot int           `json:"slot"`
	Type NamedResource `json:"type"`
}

// AbilitySlot is one slotted ability reference.
type AbilitySlot struct {
	Slot     int           `json:"slot"`
	IsHidden bool          `json:"is_hidden"`
	Ability  NamedResource `json:"ability"`
}

// StatValue is one base stat entry.
type StatValue struct {
	BaseStat int           `json:"base_stat"`
	Stat     NamedResource `json:"stat"`
}

// Species is the secondary "species" detail payload.
type Species struct {
	ID                int             `json:"id"`
	Name              string          `json:"name"`
	Names             []LocalizedName `json:"names"`
	FlavorTextEntries []FlavorText    `json:"flavor_text_entries"`
	Generation        NamedResource   `json:"generation"`
	Habitat           NamedResource   `json:"habitat"`
	Shape             NamedResource   `json:"shape"`
	Color             NamedResource   `json:"color"`
	GrowthRate        NamedResource   `json:"growth_rate"`
	EggGroups         []NamedResource `json:"egg_groups"`
	CaptureRate       *int            `json:"capture_rate"`
	BaseHappiness     *int            `json:"base_happiness"`
	HatchCounter      *int            `json:"hatch_counter"`
	GenderRate        *int            `json:"gender_rate"`
	IsLegendary       bool            `json:"is_legendary"`
	IsMythical        bool            `json:"is_mythical"`
	IsBaby            bool            `json:"is_baby"`
}

// LocalizedName is one localized display name of a species.
type LocalizedName struct {
	Name     string        `json:"name"`
	Language NamedResource `json:"language"`
}

// FlavorText is one localized description entry of a species.
type FlavorText struct {
	FlavorText string        `json:"flavor_text"`
	Language   NamedResource `json:"language"`
}

// LocalizedNameFor returns the species name in the given language, or "".
func (s Species) LocalizedNameFor(languageCode string) string {
	for _, entry := range s.Names {
		if entry.Language.Name == languageCode && entry.Name != "" {
			return entry.Name
		}
	}
	return ""
}
