package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/codescan-io/codescan/internal/scanner"
)

// PrintJSON writes {code, qualitygate?, error?}.
func PrintJSON(w io.Writer, result scanner.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	_, err = fmt.Fprintln(w, string(data))
	return err
}
