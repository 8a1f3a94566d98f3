//go:build js && wasm

package main

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"syscall/js"
	"time"

	"github.com/lucasjlepore/fit-coach/payload"
	"github.com/lucasjlepore/fit-coach/pipeline"
	"github.com/lucasjlepore/fit-coach/telemetry"
)

func main() {
	js.Global().Set("buildCoachPayload", js.FuncOf(buildCoachPayload))
	select {}
}

func buildCoachPayload(_ js.Value, args []js.Value) any {
	if len(args) < 2 {
		return failure("expected arguments: fileBytes(Uint8Array), options(object)")
	}
	fileArg := args[0]
	optsArg := args[1]
	if fileArg.IsUndefined() || fileArg.IsNull() || fileArg.Get("length").Int() == 0 {
		return failure("fit file bytes are required")
	}

	fileBytes := make([]byte, fileArg.Get("length").Int())
	if n := js.CopyBytesToGo(fileBytes, fileArg); n == 0 {
		return failure("failed to read FIT bytes from JS input")
	}

	opts := pipeline.Options{
		Format:  getString(optsArg, "format", pipeline.FormatCSV),
		Payload: payload.DefaultOptions(),
	}
	athlete := &opts.Payload.Athlete
	if v, ok := getFloat(optsArg, "ftp_w"); ok {
		athlete.FTP = telemetry.Float(v)
	}
	if v, ok := getFloat(optsArg, "lthr_bpm"); ok {
		athlete.LTHR = telemetry.Float(v)
	}
	if v, ok := getFloat(optsArg, "weight_kg"); ok && v > 0 {
		athlete.AthleteMassKG = v
	}
	if v, ok := getFloat(optsArg, "sleep_h"); ok {
		athlete.SleepHours = telemetry.Float(v)
	}
	if v, ok := getFloat(optsArg, "rpe"); ok {
		rpe := int(v)
		athlete.RPE = &rpe
	}

	name := getString(optsArg, "source_file_name", "input.fit")
	result, err := pipeline.RunBytes(context.Background(), name, fileBytes, opts)
	if err != nil {
		return failure(err.Error())
	}

	zipBytes, err := zipArtifacts(result.Files, result.Manifest.Files)
	if err != nil {
		return failure(fmt.Sprintf("create zip: %v", err))
	}
	archive := js.Global().Get("Uint8Array").New(len(zipBytes))
	js.CopyBytesToJS(archive, zipBytes)

	return map[string]any{
		"ok":      true,
		"zip":     archive,
		"payload": string(result.Files[pipeline.PayloadFileName]),
		"summary": string(result.Files[pipeline.SummaryFileName]),
		"files":   stringsToAny(result.Manifest.Files),
	}
}

func failure(msg string) map[string]any {
	return map[string]any{"ok": false, "error": msg}
}

// zipArtifacts writes files in the given order with a fixed mod time so the
// archive is reproducible.
func zipArtifacts(files map[string][]byte, names []string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fixedTime := time.Unix(0, 0).UTC()

	for _, name := range names {
		h := &zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		}
		h.SetModTime(fixedTime)
		w, err := zw.CreateHeader(h)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(files[name]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func getString(v js.Value, key, fallback string) string {
	if v.IsUndefined() || v.IsNull() {
		return fallback
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() {
		return fallback
	}
	s := out.String()
	if s == "" || s == "undefined" || s == "null" {
		return fallback
	}
	return s
}

func getFloat(v js.Value, key string) (float64, bool) {
	if v.IsUndefined() || v.IsNull() {
		return 0, false
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() || out.Type() != js.TypeNumber {
		return 0, false
	}
	return out.Float(), true
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
