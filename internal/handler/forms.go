package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// formValidator はフォーム入力の検証に使う。エラーメッセージにはformタグ名を使う。
var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

type credentialsForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

type registerForm struct {
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password" validate:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" validate:"eqfield=Password"`
}

type forgotPasswordForm struct {
	Email string `form:"email" validate:"required,email"`
}

type resetPasswordForm struct {
	Password        string `form:"password" validate:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" validate:"eqfield=Password"`
}

type passwordUpdateForm struct {
	CurrentPassword    string `form:"current_password" validate:"required"`
	NewPassword        string `form:"new_password" validate:"required,min=6"`
	ConfirmNewPassword string `form:"confirm_new_password" validate:"eqfield=NewPassword"`
}

type projectForm struct {
	Title        string `form:"title" validate:"required,max=100"`
	Description  string `form:"description" validate:"required"`
	Technologies string `form:"technologies"`
	GithubURL    string `form:"githubUrl"`
	LiveURL      string `form:"liveUrl"`
}

type skillForm struct {
	Name        string `form:"name" validate:"required,max=50"`
	Category    string `form:"category" validate:"required"`
	Proficiency string `form:"proficiency" validate:"oneof=Beginner Intermediate Advanced Expert"`
}

type experienceForm struct {
	Title       string `form:"title" validate:"required"`
	Company     string `form:"company" validate:"required"`
	Location    string `form:"location"`
	From        string `form:"from" validate:"required,datetime=2006-01-02"`
	To          string `form:"to" validate:"omitempty,datetime=2006-01-02"`
	Description string `form:"description"`
}

type learningForm struct {
	Title       string `form:"title" validate:"required"`
	Description string `form:"description" validate:"required"`
	Status      string `form:"status" validate:"oneof='In Progress' Completed"`
	DateStarted string `form:"dateStarted" validate:"required,datetime=2006-01-02"`
	Link        string `form:"link"`
}

type profileForm struct {
	FullName    string `form:"fullName" validate:"required"`
	Title       string `form:"title" validate:"required"`
	Summary     string `form:"summary"`
	Bio         string `form:"bio"`
	Location    string `form:"location"`
	Email       string `form:"email" validate:"omitempty,email"`
	Website     string `form:"website"`
	GithubURL   string `form:"githubUrl"`
	LinkedinURL string `form:"linkedinUrl"`
}

// inputError はフォーム入力の検証エラー。メッセージはそのまま画面に表示する。
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

// validateForm はフォーム構造体を検証し、最初の違反を表示用メッセージで返す。
func validateForm(form any) error {
	err := formValidator.Struct(form)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return &inputError{msg: err.Error()}
	}
	return &inputError{msg: validationMessage(validationErrors[0])}
}

func validationMessage(e validator.FieldError) string {
	field := e.Field()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Please enter a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, e.Param())
	case "eqfield":
		return "Passwords do not match"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date (YYYY-MM-DD)", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// splitList はカンマ区切りの入力を空要素を除いたスライスに変換する。
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
