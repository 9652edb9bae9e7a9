package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка
	UnknownCode Code = 0

	// Анализ пригодности (eligibility)
	PmInfo                    Code = 1000
	PmNoPrimaryConstructor    Code = 1001
	PmConstructorNotVisible   Code = 1002
	PmUnsupportedPropertyType Code = 1003
	PmDuplicateBuilderMember  Code = 1004
	PmInvalidDefault          Code = 1005
	PmUnnamedParameter        Code = 1006

	// Директивы //piecemeal:
	DirInfo            Code = 2000
	DirUnknown         Code = 2001
	DirMalformed       Code = 2002
	DirDuplicateMarker Code = 2003

	// Ошибки I/O и загрузки пакетов
	IOLoadFileError    Code = 4001
	IOMarkerMisuse     Code = 4002
	IOPackageNotFound  Code = 4003
	IOWriteOutputError Code = 4004

	// Генерация
	GenInternalError Code = 5001
	GenFormatError   Code = 5002

	// Observability
	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var codeDescription = map[Code]string{
	UnknownCode:               "Unknown error",
	PmInfo:                    "Builder information",
	PmNoPrimaryConstructor:    "No primary constructor",
	PmConstructorNotVisible:   "Primary constructor is less visible than its type",
	PmUnsupportedPropertyType: "Unsupported property type",
	PmDuplicateBuilderMember:  "Duplicate builder member",
	PmInvalidDefault:          "Invalid default value",
	PmUnnamedParameter:        "Constructor parameter has no name",
	DirInfo:                   "Directive information",
	DirUnknown:                "Unknown piecemeal directive",
	DirMalformed:              "Malformed piecemeal directive",
	DirDuplicateMarker:        "Duplicate builder marker",
	IOLoadFileError:           "Package load error",
	IOMarkerMisuse:            "Builder marker on a non-struct declaration",
	IOPackageNotFound:         "No packages matched",
	IOWriteOutputError:        "Failed to write generated output",
	GenInternalError:          "Internal synthesis error",
	GenFormatError:            "Generated code failed to format",
	ObsInfo:                   "Observability information",
	ObsTimings:                "Pipeline timings",
}

// codeName holds the stable symbolic names used by tooling and tests.
var codeName = map[Code]string{
	PmNoPrimaryConstructor:    "NO_PRIMARY_CONSTRUCTOR",
	PmConstructorNotVisible:   "PRIMARY_CONSTRUCTOR_NOT_VISIBLE",
	PmUnsupportedPropertyType: "UNSUPPORTED_PROPERTY_TYPE",
	PmDuplicateBuilderMember:  "DUPLICATE_BUILDER_MEMBER",
	PmInvalidDefault:          "INVALID_DEFAULT",
	PmUnnamedParameter:        "UNNAMED_PARAMETER",
	DirUnknown:                "UNKNOWN_DIRECTIVE",
	DirMalformed:              "MALFORMED_DIRECTIVE",
	DirDuplicateMarker:        "DUPLICATE_MARKER",
	IOLoadFileError:           "PACKAGE_LOAD_ERROR",
	IOMarkerMisuse:            "MARKER_MISUSE",
	IOPackageNotFound:         "NO_PACKAGES",
	IOWriteOutputError:        "WRITE_OUTPUT_ERROR",
	GenInternalError:          "INTERNAL_SYNTHESIS_ERROR",
	GenFormatError:            "GENERATED_CODE_FORMAT_ERROR",
}

// ID returns the compact identifier, e.g. "PM1001".
// Loader, generation and observability codes share the PM prefix.
func (c Code) ID() string {
	if c == UnknownCode {
		return "E0000"
	}
	ic := int(c)
	switch {
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("DIR%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	default:
		return fmt.Sprintf("PM%04d", ic)
	}
}

// Name returns the symbolic name of the code, or its ID when none is assigned.
func (c Code) Name() string {
	if n, ok := codeName[c]; ok {
		return n
	}
	return c.ID()
}

func (c Code) Title() string {
	if d, ok := codeDescription[c]; ok {
		return d
	}
	return "Unknown error"
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}

// ParseCode resolves either a compact ID ("PM1001") or a symbolic name.
func ParseCode(s string) (Code, bool) {
	for c := range codeDescription {
		if c.ID() == s || codeName[c] == s {
			return c, true
		}
	}
	return UnknownCode, false
}
