// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` immediately after it
// unmarshals the merged Koanf tree and resolves Vault references.  Any tag
// mismatch or validation error aborts startup, ensuring the binary never
// runs with partial, malformed, or missing configuration.
//
// Field tags cover single values.  storageRules adds the one cross-field
// rule: the s3 backend needs a bucket and region, the local backend a root
// directory.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package config

import "github.com/go-playground/validator/v10"

//
// validator instance (package-level singleton)
//

var v = func() *validator.Validate {
	val := validator.New()
	val.RegisterStructValidation(storageRules, Storage{})
	return val
}()

//
// public API
//

// validateStruct returns the validation errors, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}

//
// struct-level rules
//

func storageRules(sl validator.StructLevel) {
	s := sl.Current().Interface().(Storage)
	switch s.Backend {
	case "s3":
		if s.S3.Bucket == "" {
			sl.ReportError(s.S3.Bucket, "S3.Bucket", "bucket", "required_for_s3", "")
		}
		if s.S3.Region == "" {
			sl.ReportError(s.S3.Region, "S3.Region", "region", "required_for_s3", "")
		}
	case "local":
		if s.Local.Root == "" {
			sl.ReportError(s.Local.Root, "Local.Root", "root", "required_for_local", "")
		}
	}
}
