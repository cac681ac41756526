// Package i18n translates user-facing messages. Message files are embedded
// from locales/active.<lang>.toml.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// EnvLanguage overrides the system locale.
const EnvLanguage = "APKX_LANG"

//go:embed locales/*.toml
var localeFS embed.FS

var (
	bundle          *goi18n.Bundle
	localizer       *goi18n.Localizer
	matcher         language.Matcher
	currentLanguage = language.English
)

// Init loads the message files and picks the language from, in order,
// langOverride, APKX_LANG, LC_ALL, LC_MESSAGES, LANG and the platform UI
// language. English is the fallback.
func Init(langOverride string) error {
	b := goi18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := fs.Glob(localeFS, "locales/active.*.toml")
	if err != nil {
		return err
	}
	for _, file := range files {
		if _, err := b.LoadMessageFileFS(localeFS, file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}

	bundle = b
	matcher = language.NewMatcher(b.LanguageTags())
	currentLanguage = selectLanguage(langOverride)
	localizer = goi18n.NewLocalizer(bundle, currentLanguage.String(), language.English.String())
	return nil
}

// T translates a message by ID with optional template data. The ID itself
// is returned when there is no translation.
func T(id string, data ...map[string]interface{}) string {
	if localizer == nil {
		if err := Init(""); err != nil {
			fmt.Fprintf(os.Stderr, "i18n init failed: %v\n", err)
			return id
		}
	}

	var templateData map[string]interface{}
	if len(data) > 0 {
		templateData = data[0]
	}

	cfg := &goi18n.LocalizeConfig{
		MessageID:      id,
		TemplateData:   templateData,
		PluralCount:    pluralCount(templateData),
		DefaultMessage: &goi18n.Message{ID: id, Other: id},
	}
	msg, err := localizer.Localize(cfg)
	if err != nil && cfg.PluralCount != nil {
		// Flat messages only carry the "other" form.
		cfg.PluralCount = nil
		msg, err = localizer.Localize(cfg)
	}
	if err != nil || msg == "" {
		return id
	}
	return msg
}

// Reset drops the loaded bundle so the next Init or T starts fresh.
func Reset() {
	bundle = nil
	localizer = nil
	matcher = nil
	currentLanguage = language.English
}

// CurrentLanguage returns the chosen language tag.
func CurrentLanguage() language.Tag {
	return currentLanguage
}

// Languages lists the languages with a message file.
func Languages() []language.Tag {
	if bundle == nil {
		return nil
	}
	return bundle.LanguageTags()
}

func selectLanguage(langOverride string) language.Tag {
	candidates := []string{langOverride}
	for _, key := range []string{EnvLanguage, "LC_ALL", "LC_MESSAGES", "LANG"} {
		candidates = append(candidates, os.Getenv(key))
	}

	var tags []language.Tag
	for _, c := range candidates {
		if tag, ok := parseLocale(c); ok {
			tags = append(tags, tag)
		}
	}
	// Locale variables are usually unset on Windows.
	if len(tags) == 0 {
		for _, c := range platformLocales() {
			if tag, ok := parseLocale(c); ok {
				tags = append(tags, tag)
			}
		}
	}
	if len(tags) == 0 || matcher == nil || bundle == nil {
		return language.English
	}

	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return bundle.LanguageTags()[idx]
}

// parseLocale turns POSIX locale strings such as zh_CN.UTF-8 into tags.
func parseLocale(s string) (language.Tag, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	if s == "" || s == "C" || s == "POSIX" {
		return language.Und, false
	}

	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err == nil {
		return tag, true
	}
	switch lower := strings.ToLower(s); {
	case strings.HasPrefix(lower, "zh"):
		return language.Chinese, true
	case strings.HasPrefix(lower, "en"):
		return language.English, true
	}
	return language.Und, false
}

func pluralCount(data map[string]interface{}) interface{} {
	for _, key := range []string{"count", "Count", "total", "Total"} {
		if val, ok := data[key]; ok {
			return val
		}
	}
	return nil
}
