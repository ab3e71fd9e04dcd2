package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"mitra-ai/internal/repository/db"
)

const maxFallbackTitle = 35

// DefaultTitle is the title a new chat gets before its first exchange
func DefaultTitle(mode db.ChatMode) string {
	switch mode {
	case db.ModeResearch:
		return "Riset Baru"
	case db.ModeCreate:
		return "Buat Dokumen"
	case db.ModeEdit:
		return "Edit Dokumen"
	}
	return "Chat Baru"
}

type titleRule struct {
	keywords []string
	title    string
}

// Checked in order; the first rule with a matching keyword wins.
var titleRules = []titleRule{
	{[]string{"permaculture", "permakultur"}, "Riset Permaculture"},
	{[]string{"climate", "iklim"}, "Riset Perubahan Iklim"},
	{[]string{"education", "pendidikan"}, "Riset Pendidikan"},
	{[]string{"technology", "teknologi"}, "Riset Teknologi"},
	{[]string{"health", "kesehatan"}, "Riset Kesehatan"},
	{[]string{"economic", "ekonomi"}, "Riset Ekonomi"},
	{[]string{"social", "sosial"}, "Riset Sosial"},
	{[]string{"lingkungan", "environment"}, "Riset Lingkungan"},
	{[]string{"budaya", "culture"}, "Riset Budaya"},
	{[]string{"politik", "political"}, "Riset Politik"},
	{[]string{"proposal"}, "Proposal Penelitian"},
	{[]string{"artikel", "article"}, "Artikel Jurnal"},
	{[]string{"laporan", "report"}, "Laporan Penelitian"},
	{[]string{"makalah", "paper"}, "Makalah Ilmiah"},
	{[]string{"skripsi"}, "Skripsi"},
	{[]string{"tesis", "thesis"}, "Tesis"},
	{[]string{"disertasi"}, "Disertasi"},
}

var titleStopwords = map[string]struct{}{
	"dengan": {}, "untuk": {}, "pada": {}, "dalam": {}, "dari": {}, "yang": {},
	"adalah": {}, "akan": {}, "dapat": {}, "bisa": {}, "harus": {}, "telah": {},
	"riset": {}, "mengenai": {}, "tentang": {}, "buat": {}, "buatkan": {},
}

// GenerateTitle derives a short chat title from the first user message
func GenerateTitle(content string, mode db.ChatMode) string {
	text := strings.ToLower(strings.TrimSpace(content))
	if text == "" {
		return DefaultTitle(mode)
	}

	for _, rule := range titleRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.title
			}
		}
	}

	var words []string
	for _, w := range strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) {
		if utf8.RuneCountInString(w) <= 3 {
			continue
		}
		if _, stop := titleStopwords[w]; stop {
			continue
		}
		words = append(words, capitalize(w))
		if len(words) == 2 {
			break
		}
	}
	if len(words) > 0 {
		return modePrefix(mode) + " " + strings.Join(words, " ")
	}

	trimmed := strings.TrimSpace(content)
	if utf8.RuneCountInString(trimmed) > maxFallbackTitle {
		return strings.TrimSpace(string([]rune(trimmed)[:maxFallbackTitle])) + "..."
	}
	return trimmed
}

func modePrefix(mode db.ChatMode) string {
	switch mode {
	case db.ModeCreate:
		return "Dokumen"
	case db.ModeEdit:
		return "Edit"
	}
	return "Riset"
}

func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	return string(unicode.ToUpper(r)) + w[size:]
}
