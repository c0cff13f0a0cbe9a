package memlayout

import (
	"errors"
	"fmt"
)

// LayoutErrorCode categorizes configuration errors found during validation.
type LayoutErrorCode string

const (
	// ErrCodeUnknownBank indicates a region names a bank that was never declared.
	ErrCodeUnknownBank LayoutErrorCode = "UNKNOWN_BANK"

	// ErrCodeUnknownRegion indicates an allocation names a region that was never declared.
	ErrCodeUnknownRegion LayoutErrorCode = "UNKNOWN_REGION"

	// ErrCodeDuplicateName indicates two banks, regions, or allocations share a name.
	ErrCodeDuplicateName LayoutErrorCode = "DUPLICATE_NAME"

	// ErrCodeBadPurpose indicates an unknown purpose tag.
	ErrCodeBadPurpose LayoutErrorCode = "BAD_PURPOSE"

	// ErrCodeBadSize indicates a zero-length region or allocation.
	ErrCodeBadSize LayoutErrorCode = "BAD_SIZE"

	// ErrCodeRegionOverlap indicates two regions in the same bank intersect.
	ErrCodeRegionOverlap LayoutErrorCode = "REGION_OVERLAP"

	// ErrCodeAllocationOverlap indicates two allocations in the same region
	// intersect without a permitted overlay relationship.
	ErrCodeAllocationOverlap LayoutErrorCode = "ALLOCATION_OVERLAP"

	// ErrCodeOutOfBank indicates a region extends past its bank boundary.
	ErrCodeOutOfBank LayoutErrorCode = "OUT_OF_BANK"

	// ErrCodeOutOfRegion indicates an allocation extends past its region.
	ErrCodeOutOfRegion LayoutErrorCode = "OUT_OF_REGION"

	// ErrCodeMisaligned indicates a length or protection size violates the
	// alignment rule for the purpose tag.
	ErrCodeMisaligned LayoutErrorCode = "MISALIGNED"
)

// LayoutError is a configuration error in the declared memory partitioning.
// Layout errors are board-definition bugs: they are detected once, before
// any subsystem init runs, and are always fatal.
type LayoutError struct {
	Code       LayoutErrorCode
	Message    string
	Bank       string
	Region     string
	Allocation string
}

func (e *LayoutError) Error() string {
	switch {
	case e.Allocation != "":
		return fmt.Sprintf("%s: %s (allocation=%s, region=%s)", e.Code, e.Message, e.Allocation, e.Region)
	case e.Region != "":
		return fmt.Sprintf("%s: %s (region=%s, bank=%s)", e.Code, e.Message, e.Region, e.Bank)
	case e.Bank != "":
		return fmt.Sprintf("%s: %s (bank=%s)", e.Code, e.Message, e.Bank)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsLayoutError reports whether err is (or wraps) a LayoutError.
func IsLayoutError(err error) bool {
	var le *LayoutError
	return errors.As(err, &le)
}

// CodeOf extracts the layout error code, or "" for non-layout errors.
func CodeOf(err error) LayoutErrorCode {
	var le *LayoutError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
