//go:build !js

package pipeline

import (
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// parquetWriterThreads is the writer's marshal parallelism.
const parquetWriterThreads = 4

type canonicalParquetRow struct {
	RecordIndex  int64   `parquet:"name=record_index, type=INT64"`
	ElapsedS     float64 `parquet:"name=elapsed_s, type=DOUBLE"`
	PowerW       float64 `parquet:"name=power_w, type=DOUBLE"`
	HRBPM        float64 `parquet:"name=hr_bpm, type=DOUBLE"`
	CadenceRPM   float64 `parquet:"name=cadence_rpm, type=DOUBLE"`
	SpeedMPS     float64 `parquet:"name=speed_mps, type=DOUBLE"`
	DistanceM    float64 `parquet:"name=distance_m, type=DOUBLE"`
	AltitudeM    float64 `parquet:"name=altitude_m, type=DOUBLE"`
	LatDeg       float64 `parquet:"name=lat_deg, type=DOUBLE"`
	LonDeg       float64 `parquet:"name=lon_deg, type=DOUBLE"`
	ValidPower   bool    `parquet:"name=valid_power, type=BOOLEAN"`
	ValidHR      bool    `parquet:"name=valid_hr, type=BOOLEAN"`
	ValidCadence bool    `parquet:"name=valid_cadence, type=BOOLEAN"`
}

// parquetRow flattens a sample for the parquet schema. Parquet columns are
// not nullable here, so missing readings become NaN and the valid_* flags
// carry presence.
func (s CanonicalSample) parquetRow() canonicalParquetRow {
	return canonicalParquetRow{
		RecordIndex:  int64(s.RecordIndex),
		ElapsedS:     s.ElapsedS,
		PowerW:       valueOrNaN(s.PowerW),
		HRBPM:        valueOrNaN(s.HRBPM),
		CadenceRPM:   valueOrNaN(s.CadenceRPM),
		SpeedMPS:     valueOrNaN(s.SpeedMPS),
		DistanceM:    valueOrNaN(s.DistanceM),
		AltitudeM:    valueOrNaN(s.AltitudeM),
		LatDeg:       valueOrNaN(s.LatDeg),
		LonDeg:       valueOrNaN(s.LonDeg),
		ValidPower:   s.ValidPower,
		ValidHR:      s.ValidHR,
		ValidCadence: s.ValidCadence,
	}
}

// marshalCanonicalParquet encodes samples into an in-memory snappy parquet
// file.
func marshalCanonicalParquet(samples []CanonicalSample) ([]byte, error) {
	buf := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(buf, new(canonicalParquetRow), parquetWriterThreads)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	stopped := false
	defer func() {
		if !stopped {
			_ = pw.WriteStop()
		}
	}()
	for i := range samples {
		if err := pw.Write(samples[i].parquetRow()); err != nil {
			return nil, err
		}
	}
	stopped = true
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := buf.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.Bytes()...), nil
}
