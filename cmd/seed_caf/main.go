// seed_caf genera un script SQL para cargar archivos CAF del SII en la tabla
// cafs, a partir de un directorio con los XML descargados del portal.
//
// Uso: go run ./cmd/seed_caf [ruta/al/directorio]
// Por defecto busca en ./cafs. Escribe: migrations/002_seed_cafs.sql
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	infrasii "github.com/tu-usuario/retail-dte/internal/infrastructure/sii"
)

func main() {
	dir := "cafs"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Leer directorio %s: %v\n", dir, err)
		os.Exit(1)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".xml") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Sin archivos .xml en %s\n", dir)
		os.Exit(1)
	}

	outPath := filepath.Join("migrations", "002_seed_cafs.sql")
	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crear archivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	out.WriteString("-- Rangos de folios (CAF) autorizados por el SII\n")
	out.WriteString("-- Generado desde los XML del directorio de CAF\n\n")

	count := 0
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Leer %s: %v\n", path, err)
			os.Exit(1)
		}
		data, err := infrasii.ParseCAF(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Parsear %s: %v\n", path, err)
			os.Exit(1)
		}

		fmt.Fprintf(out, "-- %s: tipo %d, folios [%d, %d]\n",
			filepath.Base(path), data.DTEType, data.RangeFrom, data.RangeTo)
		fmt.Fprintf(out, "INSERT INTO cafs (id, emitter_rut, dte_type, range_from, range_to, consumed, is_active, raw_xml, loaded_at, updated_at)\n")
		fmt.Fprintf(out, "VALUES ('%s', '%s', %d, %d, %d, 0, true, '%s', now(), now())\n",
			uuid.New().String(), escapeSQL(data.EmitterRUT), data.DTEType,
			data.RangeFrom, data.RangeTo, escapeSQL(string(raw)))
		out.WriteString("ON CONFLICT (emitter_rut, dte_type, range_from) DO NOTHING;\n\n")
		count++
	}

	fmt.Printf("Generado %s: %d CAF\n", outPath, count)
}

// escapeSQL duplica las comillas simples para literales SQL.
func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
