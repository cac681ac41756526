//go:build !windows

package i18n

// Unix locales come from LANG and friends only.
func platformLocales() []string { return nil }
