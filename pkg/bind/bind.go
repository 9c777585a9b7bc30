// Package bind decodes and validates HTTP request bodies.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shashiranjanraj/catalog/config"
	"github.com/shashiranjanraj/catalog/pkg/apperr"
	"github.com/shashiranjanraj/catalog/pkg/imaging"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// maxBodyBytes returns the configured JSON body size limit (default 4 MB).
func maxBodyBytes() int64 {
	n, err := strconv.ParseInt(config.Get("MAX_BODY_BYTES", "4194304"), 10, 64)
	if err != nil || n <= 0 {
		return 4 << 20
	}
	return n
}

// JSON decodes r.Body as JSON into dest and runs struct validation.
// Malformed bodies and validation failures both come back as
// apperr.KindValidation.
func JSON(r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes())

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation(fmt.Sprintf("request body too large (max %d bytes)", maxErr.Limit), nil)
		}
		return apperr.Validation("invalid JSON body", nil)
	}
	return Struct(dest)
}

// Struct validates v and converts failures into a field map.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error(), nil)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	return apperr.Validation("Validation failed", fields)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// Form is a parsed multipart request.
type Form struct {
	values  map[string][]string
	Uploads []imaging.Upload
}

// Has reports whether key was submitted at all.
func (f *Form) Has(key string) bool {
	_, ok := f.values[key]
	return ok
}

// Value returns the first value for key.
func (f *Form) Value(key string) string {
	if vs := f.values[key]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

// List returns every value for key, splitting comma-separated entries.
func (f *Form) List(key string) []string {
	var out []string
	for _, v := range f.values[key] {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Multipart parses a multipart/form-data body. Files under field are read
// into memory, at most maxFiles of them, each capped at maxFileSize.
func Multipart(r *http.Request, field string, maxFiles int, maxFileSize int64) (*Form, error) {
	limit := int64(maxFiles)*maxFileSize + maxBodyBytes()
	r.Body = http.MaxBytesReader(nil, r.Body, limit)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			if err := parsePostForm(r); err != nil {
				return nil, err
			}
			return &Form{values: r.PostForm}, nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apperr.Validation("request body too large", map[string]string{field: "upload too large"})
		}
		return nil, apperr.Validation("invalid multipart body", nil)
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	form := &Form{values: r.MultipartForm.Value}
	headers := r.MultipartForm.File[field]
	if len(headers) > maxFiles {
		return nil, apperr.Validation("Too many files",
			map[string]string{field: fmt.Sprintf("at most %d files allowed", maxFiles)})
	}

	for _, fh := range headers {
		if fh.Size > maxFileSize {
			return nil, apperr.Validation("File too large",
				map[string]string{field: fmt.Sprintf("%s exceeds %d bytes", fh.Filename, maxFileSize)})
		}
		data, err := readPart(fh)
		if err != nil {
			return nil, apperr.Validation("unreadable upload", map[string]string{field: err.Error()})
		}
		form.Uploads = append(form.Uploads, imaging.Upload{Filename: fh.Filename, Data: data})
	}
	return form, nil
}

func parsePostForm(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return apperr.Validation("invalid form body", nil)
	}
	return nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
