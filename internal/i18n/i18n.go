// Package i18n serves the Arabic and English message catalogs. Catalogs are
// YAML files with one top-level key per language; nested keys are addressed
// with dots, e.g. "bot.pagination.next".
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultLang = "ar"

//go:embed locales/*.yaml
var bundled embed.FS

type Translator interface {
	// T returns the message for key, falling back to the default language
	// and then to the key itself.
	T(key string) string
	Lang() string
}

// catalog maps flattened keys to messages.
type catalog map[string]string

type Manager struct {
	catalogs    map[string]catalog
	defaultLang string
}

// Load reads the catalogs compiled into the binary.
func Load(defaultLang string) (*Manager, error) {
	return LoadFS(bundled, "locales", defaultLang)
}

// MustDefault returns the bundled Arabic translator. It panics only when the
// embedded catalogs are broken.
func MustDefault() Translator {
	m, err := Load(DefaultLang)
	if err != nil {
		panic(err)
	}
	return m.Translator(DefaultLang)
}

// LoadFromDir reads catalogs from disk so deployments can override texts.
func LoadFromDir(dir, defaultLang string) (*Manager, error) {
	return LoadFS(os.DirFS(dir), ".", defaultLang)
}

// LoadFS merges every .yaml/.yml file in dir. Later files win on duplicate keys.
func LoadFS(fsys fs.FS, dir, defaultLang string) (*Manager, error) {
	if defaultLang == "" {
		defaultLang = DefaultLang
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("i18n: read dir %s: %w", dir, err)
	}

	m := &Manager{catalogs: make(map[string]catalog), defaultLang: defaultLang}
	files := 0
	for _, entry := range entries {
		ext := strings.ToLower(path.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		files++

		if err := m.merge(fsys, path.Join(dir, entry.Name())); err != nil {
			return nil, err
		}
	}

	if files == 0 {
		return nil, fmt.Errorf("i18n: no yaml files in %s", dir)
	}
	if _, ok := m.catalogs[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing", defaultLang)
	}
	return m, nil
}

func (m *Manager) merge(fsys fs.FS, name string) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("i18n: read %s: %w", name, err)
	}

	var doc map[string]map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("i18n: parse %s: %w", name, err)
	}

	for lang, tree := range doc {
		lang = normalize(lang)
		if lang == "" {
			continue
		}
		c := m.catalogs[lang]
		if c == nil {
			c = make(catalog)
			m.catalogs[lang] = c
		}
		c.add("", tree)
	}
	return nil
}

func (c catalog) add(prefix string, tree map[string]any) {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			c.add(key, v)
		case string:
			c[key] = v
		case nil:
		default:
			c[key] = fmt.Sprint(v)
		}
	}
}

// Translator returns the translator for lang, or for the default language
// when lang is unknown.
func (m *Manager) Translator(lang string) Translator {
	if m == nil {
		return translator{}
	}

	lang = normalize(lang)
	if _, ok := m.catalogs[lang]; !ok {
		lang = m.defaultLang
	}
	return translator{lang: lang, own: m.catalogs[lang], fallback: m.catalogs[m.defaultLang]}
}

// Languages lists the loaded languages in order.
func (m *Manager) Languages() []string {
	if m == nil {
		return nil
	}
	langs := make([]string, 0, len(m.catalogs))
	for lang := range m.catalogs {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	return langs
}

// Missing lists keys of the default catalog that lang does not translate.
func (m *Manager) Missing(lang string) []string {
	if m == nil {
		return nil
	}
	own := m.catalogs[normalize(lang)]

	var missing []string
	for key := range m.catalogs[m.defaultLang] {
		if _, ok := own[key]; !ok {
			missing = append(missing, key)
		}
	}
	slices.Sort(missing)
	return missing
}

type translator struct {
	lang     string
	own      catalog
	fallback catalog
}

func (t translator) Lang() string { return t.lang }

func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if v, ok := t.own[key]; ok {
		return v
	}
	if v, ok := t.fallback[key]; ok {
		return v
	}
	return key
}

// Sprintf resolves key and formats it with args.
func Sprintf(t Translator, key string, args ...any) string {
	if t == nil {
		return key
	}
	return fmt.Sprintf(t.T(key), args...)
}

func normalize(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}
