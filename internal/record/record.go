// Package record defines the canonical persisted representation of one
// catalog entity and the normalizer producing it from raw API payloads.
package record

// Standard type vocabulary. Anything upstream that does not map into this
// set is either aliased or dropped.
var standardTypes = map[string]struct{}{
	"NORMAL": {}, "FIRE": {}, "WATER": {}, "GRASS": {}, "ELECTRIC": {},
	"ICE": {}, "FIGHTING": {}, "POISON": {}, "GROUND": {}, "FLYING": {},
	"PSYCHIC": {}, "BUG": {}, "ROCK": {}, "GHOST": {}, "DRAGON": {},
	"DARK": {}, "STEEL": {}, "FAIRY": {},
}

var typeAliases = map[string]string{
	"STELLAR": "NORMAL",
	"UNKNOWN": "NORMAL",
}

// Ability is one slotted ability of a record. Serialized into JSONB.
type Ability struct {
	Name     string `json:"name"`
	IsHidden bool   `json:"isHidden"`
	Slot     int    `json:"slot"`
}

// BaseStats is the stat block of a record. Total is always recomputed
// from the individual stats, never taken from upstream.
type BaseStats struct {
	HP             int `json:"hp"`
	Attack         int `json:"attack"`
	Defense        int `json:"defense"`
	SpecialAttack  int `json:"specialAttack"`
	SpecialDefense int `json:"specialDefense"`
	Speed          int `json:"speed"`
	Total          int `json:"total"`
}

// Sum recomputes the derived total.
func (s BaseStats) Sum() int {
	return s.HP + s.Attack + s.Defense + s.SpecialAttack + s.SpecialDefense + s.Speed
}

// RegionMembership ties a record to one region under that region's own
// pokedex numbering. Serialized into JSONB.
type RegionMembership struct {
	RegionName          string `json:"regionName"`
	RegionPokedexNumber int    `json:"regionPokedexNumber"`
	RegionImageURL      string `json:"regionImageUrl"`
}

// Record is the canonical record persisted for one catalog entity.
type Record struct {
	PokeAPIID         int
	NationalDexNumber int
	Slug              string
	Name              string
	DisplayName       string
	ImageURL          string
	SpriteURL         string
	CryURL            string
	Description       string
	Height            float64
	Weight            float64
	BaseExperience    int
	Generation        string
	Habitat           string
	Shape             string
	Color             string
	GrowthRate        string
	EggGroups         []string
	Types             []string
	Abilities         []Ability
	BaseStats         BaseStats
	CaptureRate       *int
	BaseHappiness     *int
	HatchCounter      *int
	GenderRate        *int
	IsLegendary       bool
	IsMythical        bool
	IsBaby            bool
	Regions           []RegionMembership
}
