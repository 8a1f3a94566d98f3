//go:build js

package pipeline

// The parquet writer depends on thrift socket code that does not build for
// js, so browser builds only produce CSV.
func marshalCanonicalParquet([]CanonicalSample) ([]byte, error) {
	return nil, ErrParquetUnsupported
}
