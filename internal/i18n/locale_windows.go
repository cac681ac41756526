//go:build windows

package i18n

import "golang.org/x/sys/windows"

// platformLocales returns the user, then system, preferred UI languages.
func platformLocales() []string {
	var locales []string

	if langs, err := windows.GetUserPreferredUILanguages(windows.MUI_LANGUAGE_NAME); err == nil {
		for _, l := range langs {
			if l != "" {
				locales = append(locales, l)
			}
		}
	}

	if len(locales) == 0 {
		if langs, err := windows.GetSystemPreferredUILanguages(windows.MUI_LANGUAGE_NAME); err == nil {
			locales = append(locales, langs...)
		}
	}

	return locales
}
