// internal/adapters/output/json.go
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mira/internal/core/domain"
)

// sanitizeIdentity convierte una identidad de target en un fragmento de
// nombre de fichero válido. Ejemplo: "10.0.0.0/24" -> "10_0_0_0_24".
func sanitizeIdentity(identity string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, identity)
}

// WriteJSON exporta el reporte completo del run en formato JSON.
// Retorna la ruta del fichero escrito.
func WriteJSON(dir string, report *domain.Report) (string, error) {
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	runID := report.RunID
	if len(runID) > 8 {
		runID = runID[:8]
	}
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("mira_%s_%s.json", sanitizeIdentity(runID), timestamp)
	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return "", fmt.Errorf("failed to encode JSON: %w", err)
	}

	return path, nil
}

// WriteJSONStdout exporta el reporte a stdout en formato JSON.
func WriteJSONStdout(report *domain.Report, pretty bool) error {
	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(report)
}
