package quake

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Vocabulary is the damage vocabulary of each filter language.
type Vocabulary struct {
	English  []string `koanf:"english"`
	Japanese []string `koanf:"japanese"`
}

// Words returns the word list for a language.
func (v Vocabulary) Words(lang Language) []string {
	switch lang {
	case English:
		return v.English
	case Japanese:
		return v.Japanese
	default:
		return nil
	}
}

// DefaultVocabulary returns the built-in damage vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		English:  append([]string(nil), englishDamageWords...),
		Japanese: append([]string(nil), japaneseDamageWords...),
	}
}

// LoadVocabulary reads a YAML vocabulary file with "english" and "japanese" lists.
// A language missing from the file keeps its built-in list. An empty path returns the defaults.
func LoadVocabulary(path string) (Vocabulary, error) {
	vocab := DefaultVocabulary()
	if path == "" {
		return vocab, nil
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Vocabulary{}, fmt.Errorf("failed to load vocabulary file: %w", err)
	}
	var custom Vocabulary
	if err := k.Unmarshal("", &custom); err != nil {
		return Vocabulary{}, fmt.Errorf("failed to unmarshal vocabulary: %w", err)
	}
	if len(custom.English) > 0 {
		vocab.English = custom.English
	}
	if len(custom.Japanese) > 0 {
		vocab.Japanese = custom.Japanese
	}
	return vocab, nil
}

var englishDamageWords = []string{
	"blackout", "broke", "broken",
	"burn", "burned", "burning", "burns",
	"catastrophe", "catastrophes", "catastrophic",
	"chaos",
	"collapse", "collapsed", "collapses",
	"crack", "cracked", "cracking", "cracks",
	"crash", "crashed", "crashes",
	"cripple", "cripples", "crumble",
	"crush", "crushed", "crushes",
	"damage", "damaged", "damaging",
	"dead", "death", "deaths",
	"deform", "deformed", "deforms",
	"demonish",
	"destruct", "destructed", "destructing", "destructs",
	"destroy", "destroyed", "destroying", "destroys",
	"devastate", "devastated", "devastates", "devastating",
	"die", "died", "dies",
	"displace", "displaced",
	"disrupt", "disrupted", "disrupting", "disrupts",
	"fatalities", "fatality",
	"fissure", "fissures",
	"fire",
	"flood", "flooded", "flooding",
	"hurt", "hurting", "hurts",
	"injuries", "injured", "injury",
	"kill", "killed", "killing",
	"leak", "leaked", "leaking", "leaks",
	"massive", "outage", "rockslide", "rubble",
	"rupture", "ruptures",
	"safe", "safety",
	"scatter", "scattered", "scatters",
	"severe",
	"shatter", "shattered", "shatters",
	"smash", "smashed", "smashes", "smashing",
	"suffer", "suffered", "suffering", "suffers",
	"trauma",
	"warp", "warps",
	"wreck", "wrecked", "wrecks",
}

var japaneseDamageWords = []string{
	"停電",    // blackout
	"壊れた",   // broke, broken
	"燃える",   // burn
	"燃えた",   // burned
	"燃えている", // burning
	"大災害",   // catastrophe
	"壊滅的",   // catastrophic
	"混乱",    // chaos
	"崩壊",    // collapse
	"ひび",    // crack
	"墜落",    // crash
	"無力",    // cripple
	"崩れる",   // crumble
	"押しつぶす", // crush
	"損傷",    // damage
	"死んだ",   // dead
	"死亡",    // death
	"変形する",  // deform
	"破壊",    // destruct
	"破壊する",  // destroy
	"壊滅させる", // devastate
	"死ぬ",    // die
	"避難する",  // displace
	"混乱する",  // disrupt
	"死者",    // fatality
	"裂け目",   // fissure
	"火事",    // fire
	"洪水",    // flood
	"傷つく",   // hurt
	"けが",    // injury
	"負傷した",  // injured
	"殺す",    // kill
	"漏れ",    // leak
	"巨大な",   // massive
	"がけ崩れ",  // rockslide
	"瓦礫",    // rubble
	"破裂",    // rupture
	"安全",    // safe
	"散らす",   // scatter
	"厳しい",   // severe
	"粉々にする", // shatter
	"打ち砕く",  // smash
	"苦しむ",   // suffer
	"外傷",    // trauma
	"ゆがむ",   // warp
}
