package domain

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorCode string

const (
	CodeInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	CodeFailedPrecond     ErrorCode = "FAILED_PRECONDITION"
	CodeResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"
	CodeInternal          ErrorCode = "INTERNAL"
)

var (
	ErrEmptyToolName   = errors.New("tool name is required")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidWeight   = errors.New("estimated tokens must be positive")
	ErrFlatRegistry    = errors.New("registry runs in minimal mode; every tool is always active")
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
	Meta    map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:    existing.Code,
			Op:      op,
			Message: existing.Message,
			Cause:   existing.Cause,
			Meta:    existing.Meta,
		}
	}
	return E(CodeFrom(err, code), op, "", err)
}

// CodeFrom maps err to an error code, falling back to def.
func CodeFrom(err error, def ErrorCode) ErrorCode {
	if err == nil {
		return def
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code
	}
	var (
		dup      *DuplicateNameError
		cat      *UnknownCategoryError
		sub      *UnknownSubCategoryError
		tool     *UnknownToolError
		layer    *UnknownLayerError
		circular *CircularDependencyError
		capacity *LayerCapacityError
	)
	switch {
	case errors.As(err, &dup):
		return CodeAlreadyExists
	case errors.As(err, &cat), errors.As(err, &sub):
		return CodeInvalidArgument
	case errors.As(err, &tool), errors.As(err, &layer):
		return CodeNotFound
	case errors.As(err, &circular):
		return CodeFailedPrecond
	case errors.As(err, &capacity):
		return CodeResourceExhausted
	case errors.Is(err, ErrEmptyToolName), errors.Is(err, ErrInvalidCategory), errors.Is(err, ErrInvalidWeight):
		return CodeInvalidArgument
	case errors.Is(err, ErrFlatRegistry):
		return CodeFailedPrecond
	default:
		return def
	}
}

// DuplicateNameError is returned when a tool name is registered twice.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// UnknownCategoryError reports a category id outside the closed set.
type UnknownCategoryError struct {
	Name  string
	Valid []string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q (valid: %s)", e.Name, strings.Join(e.Valid, ", "))
}

// UnknownSubCategoryError reports a sub-category not declared under its category.
type UnknownSubCategoryError struct {
	Category Category
	Name     string
	Valid    []string
}

func (e *UnknownSubCategoryError) Error() string {
	return fmt.Sprintf("unknown sub-category %q in %s (valid: %s)", e.Name, e.Category, strings.Join(e.Valid, ", "))
}

// UnknownToolError reports tool names missing from the catalog.
type UnknownToolError struct {
	Names []string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool(s): %s", strings.Join(e.Names, ", "))
}

// UnknownLayerError reports a layer name missing from the layer configuration.
type UnknownLayerError struct {
	Name  string
	Valid []string
}

func (e *UnknownLayerError) Error() string {
	return fmt.Sprintf("unknown layer %q (valid: %s)", e.Name, strings.Join(e.Valid, ", "))
}

// CircularDependencyError names the dependency cycle, first node repeated at the end.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return "circular dependency: " + strings.Join(e.Cycle, " -> ")
}

// LayerCapacityError reports that maxActiveLayers would be exceeded.
type LayerCapacityError struct {
	Requested string
	Active    []string
	Max       int
}

func (e *LayerCapacityError) Error() string {
	return fmt.Sprintf("cannot activate layer %q: %d/%d layers active (%s)", e.Requested, len(e.Active), e.Max, strings.Join(e.Active, ", "))
}

// Suggestions returns actionable hints for a per-request error.
func Suggestions(err error) []string {
	var (
		cat      *UnknownCategoryError
		sub      *UnknownSubCategoryError
		tool     *UnknownToolError
		layer    *UnknownLayerError
		circular *CircularDependencyError
		capacity *LayerCapacityError
	)
	switch {
	case errors.As(err, &cat):
		return []string{
			"valid categories: " + strings.Join(cat.Valid, ", "),
			"use discover({type:'categories'}) to see every category with tool counts",
		}
	case errors.As(err, &sub):
		return []string{
			fmt.Sprintf("valid sub-categories under %s: %s", sub.Category, strings.Join(sub.Valid, ", ")),
			"use discover({type:'tree'}) to see valid names",
		}
	case errors.As(err, &tool):
		return []string{
			"use search({query:'...'}) to find tools by keyword",
			"use discover({type:'tree'}) to see valid names",
		}
	case errors.As(err, &layer):
		return []string{"valid layers: " + strings.Join(layer.Valid, ", ")}
	case errors.As(err, &circular):
		return []string{
			fmt.Sprintf("remove one dependsOn edge of the cycle %s", strings.Join(circular.Cycle, " -> ")),
			"or set dependencies.allowCircular in the profile",
		}
	case errors.As(err, &capacity):
		return []string{
			fmt.Sprintf("deactivate one of the active layers first (%s)", strings.Join(capacity.Active, ", ")),
			"or pass exclusive:true to replace the current selection",
		}
	default:
		return nil
	}
}
