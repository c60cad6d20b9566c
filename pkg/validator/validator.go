package validator

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"unicode/utf16"

	"anoa.com/classboard/pkg/apperror"
	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Get returns the shared validator with the site's custom tags registered.
func Get() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		Register(validate)
	})
	return validate
}

// Register adds the custom tags to v. It is also used for gin's binding
// validator so request DTOs can use the same tags.
func Register(v *validator.Validate) {
	_ = v.RegisterValidation("studentid", isStudentID)
	_ = v.RegisterValidation("bytemax", isWithinByteLimit)
}

// ByteLength measures text the way the original byte counters did: per
// UTF-16 code unit, 1 byte for ASCII and 2 bytes otherwise.
func ByteLength(s string) int {
	n := 0
	for _, unit := range utf16.Encode([]rune(s)) {
		if unit <= 0x7F {
			n++
		} else {
			n += 2
		}
	}
	return n
}

func isStudentID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isWithinByteLimit(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return ByteLength(fl.Field().String()) <= limit
}

// Struct validates s with the shared validator.
func Struct(s any) error {
	return Get().Struct(s)
}

// Check validates s and turns a failure into an input error carrying the
// formatted message.
func Check(s any) error {
	if err := Struct(s); err != nil {
		return apperror.New(http.StatusBadRequest, FormatValidationError(err), apperror.ErrInvalidInput)
	}
	return nil
}

func FormatValidationError(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, fieldError := range validationErrors {
			message := getFieldErrorMessage(fieldError)
			messages = append(messages, message)
		}
		return strings.Join(messages, "; ")
	}
	return err.Error()
}

func getFieldErrorMessage(fe validator.FieldError) string {
	field := getFieldName(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s을(를) 입력해주세요.", field)
	case "studentid":
		return "학번은 4자리 숫자여야 합니다. (예: 1213)"
	case "bytemax":
		return fmt.Sprintf("%s은(는) %sbyte를 넘을 수 없습니다.", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s은(는) 최소 %s자 이상이어야 합니다.", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s은(는) 최대 %s자까지 가능합니다.", field, fe.Param())
	default:
		return fmt.Sprintf("%s 형식이 올바르지 않습니다.", field)
	}
}

func getFieldName(field string) string {
	fieldNames := map[string]string{
		"ID":       "학번",
		"Password": "비밀번호",
		"Name":     "이름",
		"Title":    "제목",
		"Body":     "내용",
		"MimeType": "이미지 형식",
		"Image":    "이미지",
	}

	if name, ok := fieldNames[field]; ok {
		return name
	}
	return field
}
