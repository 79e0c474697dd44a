package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv/v2"
	"github.com/xuri/excelize/v2"
)

// ErrTooLarge is returned for files above the read limit.
var ErrTooLarge = errors.New("file too large")

// converters extract the text of zipped office documents. Each returns one
// line per paragraph, row or slide text run.
var converters = map[string]func(p string) (string, error){
	"docx": docconvFile(docconv.ConvertDocx),
	"pptx": docconvFile(docconv.ConvertPptx),
	"odt":  docconvFile(docconv.ConvertODT),
	// An ODF presentation keeps its text in content.xml exactly like a text document.
	"odp":  docconvFile(docconv.ConvertODT),
	"xlsx": readWorkbook,
}

// ReadContent returns the text of the file at p. Office documents (docx,
// xlsx, pptx, odt, odp) are converted with one paragraph per line of the
// document; anything else is read as UTF-8. Files without an extension and
// files that are not valid UTF-8 have no content.
func ReadContent(p string, maxBytes int64) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(p), "."))
	base := filepath.Base(p)
	if ext == "" || (strings.HasPrefix(base, ".") && strings.Count(base, ".") == 1) {
		return "", nil
	}

	info, err := os.Stat(p)
	if err != nil {
		return "", err
	}
	if info.Size() > maxBytes {
		return "", fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, p, info.Size())
	}

	if convert, ok := converters[ext]; ok {
		text, err := convert(p)
		if err != nil {
			return "", fmt.Errorf("convert %s: %w", p, err)
		}
		return linesToParagraphs(text), nil
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", nil
	}
	return string(data), nil
}

func docconvFile(convert func(io.Reader) (string, map[string]string, error)) func(string) (string, error) {
	return func(p string) (string, error) {
		f, err := os.Open(p)
		if err != nil {
			return "", err
		}
		defer func() { _ = f.Close() }()

		text, _, err := convert(f)
		return text, err
	}
}

// readWorkbook returns every non-empty row of every sheet, cells separated
// by a space.
func readWorkbook(p string) (string, error) {
	wb, err := excelize.OpenFile(p)
	if err != nil {
		return "", err
	}
	defer func() { _ = wb.Close() }()

	var sb strings.Builder
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				if c = strings.TrimSpace(c); c != "" {
					cells = append(cells, c)
				}
			}
			if len(cells) > 0 {
				sb.WriteString(strings.Join(cells, " "))
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String(), nil
}

// linesToParagraphs turns converter output into blank-line separated
// paragraphs so GroupParagraphs sees one paragraph per document line.
func linesToParagraphs(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n\n")
}
