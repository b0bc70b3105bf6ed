package record

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/pokedexfr/ingest/internal/pokeapi"
	"github.com/pokedexfr/ingest/internal/region"
)

// ErrIncomplete marks a record that failed the minimum-viable-fields
// check and must not reach persistence.
var ErrIncomplete = errors.New("record missing mandatory fields")

const artworkFallbackBase = "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/other/official-artwork"

var whitespaceRe = regexp.MustCompile(`[\s\n\f\r]+`)

// CryResolver supplies an audio URL when the source payload carries none.
type CryResolver interface {
	Resolve(ctx context.Context, name string) string
}

// Normalizer maps raw (pokemon, species) payload pairs to canonical
// records. It is a pure transform except for the optional cry lookup.
type Normalizer struct {
	cries  CryResolver
	logger *zap.Logger
}

// NewNormalizer builds a Normalizer. cries may be nil to skip audio
// enrichment for payloads without a cry of their own.
func NewNormalizer(cries CryResolver, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{cries: cries, logger: logger}
}

// Normalize builds the canonical record for one entity.
func (n *Normalizer) Normalize(ctx context.Context, pokemon pokeapi.Pokemon, species pokeapi.Species) (Record, error) {
	nationalDex := species.ID
	if nationalDex == 0 {
		nationalDex = pokemon.ID
	}

	localized := cleanText(species.LocalizedNameFor("fr"))
	if localized == "" {
		localized = titleFromSlug(species.Name)
	}
	displayName := formatDisplayName(localized, formSuffix(pokemon.Name, species.Name))

	imageURL := cleanText(pokemon.Sprites.Other.OfficialArtwork.FrontDefault)
	if imageURL == "" {
		imageURL = cleanText(pokemon.Sprites.FrontDefault)
	}
	if imageURL == "" && nationalDex > 0 {
		imageURL = fmt.Sprintf("%s/%d.png", artworkFallbackBase, nationalDex)
	}

	cryURL := cleanText(pokemon.Cries.Latest)
	if cryURL == "" {
		cryURL = cleanText(pokemon.Cries.Legacy)
	}
	if cryURL == "" && n.cries != nil {
		cryURL = n.cries.Resolve(ctx, localized)
	}

	regionName := region.ResolveName(region.NationalSentinel, nationalDex)
	if regionName == region.NationalSentinel {
		regionName = "National"
	}

	rec := Record{
		PokeAPIID:         pokemon.ID,
		NationalDexNumber: nationalDex,
		Slug:              strings.ToLower(cleanText(pokemon.Name)),
		Name:              displayName,
		DisplayName:       displayName,
		ImageURL:          imageURL,
		SpriteURL:         imageURL,
		CryURL:            cryURL,
		Description:       pickDescription(species),
		Height:            float64(pokemon.Height) / 10,
		Weight:            float64(pokemon.Weight) / 10,
		BaseExperience:    pokemon.BaseExperience,
		Generation:        cleanText(species.Generation.Name),
		Habitat:           cleanText(species.Habitat.Name),
		Shape:             cleanText(species.Shape.Name),
		Color:             cleanText(species.Color.Name),
		GrowthRate:        cleanText(species.GrowthRate.Name),
		EggGroups:         mapEggGroups(species.EggGroups),
		Types:             mapTypes(pokemon.Types),
		Abilities:         mapAbilities(pokemon.Abilities),
		BaseStats:         mapBaseStats(pokemon.Stats),
		CaptureRate:       species.CaptureRate,
		BaseHappiness:     species.BaseHappiness,
		HatchCounter:      species.HatchCounter,
		GenderRate:        species.GenderRate,
		IsLegendary:       species.IsLegendary,
		IsMythical:        species.IsMythical,
		IsBaby:            species.IsBaby,
		Regions: []RegionMembership{{
			RegionName:          regionName,
			RegionPokedexNumber: nationalDex,
			RegionImageURL:      region.ResolveImageURL(regionName, nationalDex),
		}},
	}

	if err := rec.validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (r Record) validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("%w: name", ErrIncomplete)
	case r.ImageURL == "":
		return fmt.Errorf("%w: image url", ErrIncomplete)
	case len(r.Types) == 0:
		return fmt.Errorf("%w: types", ErrIncomplete)
	}
	return nil
}

// cleanText collapses whitespace, including the form-feed and newline
// noise the flavor texts carry, into single spaces.
func cleanText(value string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(value, " "))
}

// titleFromSlug turns "mr-mime" into "Mr Mime".
func titleFromSlug(slug string) string {
	chunks := strings.Split(slug, "-")
	words := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk == "" {
			continue
		}
		r := []rune(chunk)
		r[0] = unicode.ToUpper(r[0])
		words = append(words, string(r))
	}
	return strings.Join(words, " ")
}

// formSuffix derives the variant part of a pokemon slug relative to its
// species slug ("pikachu-gmax" vs "pikachu" → "gmax").
func formSuffix(pokemonSlug, speciesSlug string) string {
	if pokemonSlug == "" || speciesSlug == "" || pokemonSlug == speciesSlug {
		return ""
	}
	if rest, ok := strings.CutPrefix(pokemonSlug, speciesSlug+"-"); ok {
		return rest
	}
	return pokemonSlug
}

func formatDisplayName(localizedName, suffix string) string {
	base := cleanText(localizedName)
	if base == "" {
		base = "Pokemon"
	}
	if suffix == "" {
		return base
	}
	return base + " (" + titleFromSlug(suffix) + ")"
}

// pickDescription returns the first non-empty flavor text in language
// priority order, French first.
func pickDescription(species pokeapi.Species) string {
	for _, lang := range []string{"fr", "en"} {
		for _, entry := range species.FlavorTextEntries {
			if entry.Language.Name == lang && entry.FlavorText != "" {
				return cleanText(entry.FlavorText)
			}
		}
	}
	return ""
}

// mapTypes projects the slotted upstream types onto the fixed vocabulary.
// Aliased categories are folded in, unrecognized ones dropped, and an
// empty result falls back to NORMAL so every record has a category.
func mapTypes(slots []pokeapi.TypeSlot) []string {
	sorted := make([]pokeapi.TypeSlot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Slot < sorted[j].Slot })

	var mapped []string
	for _, slot := range sorted {
		name := strings.ToUpper(cleanText(slot.Type.Name))
		if alias, ok := typeAliases[name]; ok {
			name = alias
		}
		if _, ok := standardTypes[name]; ok {
			mapped = append(mapped, name)
		}
	}
	if len(mapped) == 0 {
		return []string{"NORMAL"}
	}
	return mapped
}

func mapAbilities(slots []pokeapi.AbilitySlot) []Ability {
	sorted := make([]pokeapi.AbilitySlot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Slot < sorted[j].Slot })

	var abilities []Ability
	for i, slot := range sorted {
		name := cleanText(slot.Ability.Name)
		if name == "" {
			continue
		}
		number := slot.Slot
		if number == 0 {
			number = i + 1
		}
		abilities = append(abilities, Ability{Name: name, IsHidden: slot.IsHidden, Slot: number})
	}
	return abilities
}

func mapBaseStats(stats []pokeapi.StatValue) BaseStats {
	var out BaseStats
	for _, stat := range stats {
		switch stat.Stat.Name {
		case "hp":
			out.HP = stat.BaseStat
		case "attack":
			out.Attack = stat.BaseStat
		case "defense":
			out.Defense = stat.BaseStat
		case "special-attack":
			out.SpecialAttack = stat.BaseStat
		case "special-defense":
			out.SpecialDefense = stat.BaseStat
		case "speed":
			out.Speed = stat.BaseStat
		}
	}
	out.Total = out.Sum()
	return out
}

func mapEggGroups(groups []pokeapi.NamedResource) []string {
	var out []string
	for _, group := range groups {
		if name := cleanText(group.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
