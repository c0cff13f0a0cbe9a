package memlayout

import (
	"fmt"
	"sort"
)

// Validate checks the declared partitioning and freezes it into a Layout.
//
// Checks run in a fixed order so the first reported error is deterministic:
//
//  1. names are unique and purpose tags are known
//  2. every allocation's parent region exists
//  3. allocations within a region do not overlap, except permitted overlays
//  4. every region lies inside its backing bank and crosses no bank boundary
//  5. alignment and protection-granularity rules per purpose tag hold
//
// Any failure is a *LayoutError. On success the returned Layout is the only
// view anything else in the system may consume; it is immutable and lives
// for the whole process, across every soft reset.
func Validate(banks []Bank, regions []Region, allocs []Allocation) (*Layout, error) {
	bankByName := make(map[string]Bank, len(banks))
	for _, b := range banks {
		if b.Length == 0 {
			return nil, &LayoutError{Code: ErrCodeBadSize, Message: "bank has zero length", Bank: b.Name}
		}
		if b.End() < b.Origin {
			return nil, &LayoutError{Code: ErrCodeBadSize, Message: "bank extent wraps the address space", Bank: b.Name}
		}
		if _, dup := bankByName[b.Name]; dup {
			return nil, &LayoutError{Code: ErrCodeDuplicateName, Message: "bank declared twice", Bank: b.Name}
		}
		bankByName[b.Name] = b
	}

	regionByName := make(map[string]Region, len(regions))
	for _, r := range regions {
		if _, dup := regionByName[r.Name]; dup {
			return nil, &LayoutError{Code: ErrCodeDuplicateName, Message: "region declared twice", Region: r.Name, Bank: r.Bank}
		}
		if !knownPurposes[r.Purpose] {
			return nil, &LayoutError{
				Code:    ErrCodeBadPurpose,
				Message: fmt.Sprintf("unknown purpose tag %q", r.Purpose),
				Region:  r.Name,
			}
		}
		if r.Length == 0 {
			return nil, &LayoutError{Code: ErrCodeBadSize, Message: "region has zero length", Region: r.Name, Bank: r.Bank}
		}
		if r.End() < r.Base {
			return nil, &LayoutError{Code: ErrCodeBadSize, Message: "region extent wraps the address space", Region: r.Name, Bank: r.Bank}
		}
		regionByName[r.Name] = r
	}

	// (a) every allocation's parent region exists.
	allocsByRegion := make(map[string][]Allocation)
	seenAllocs := make(map[string]bool, len(allocs))
	for _, a := range allocs {
		if seenAllocs[a.Name] {
			return nil, &LayoutError{Code: ErrCodeDuplicateName, Message: "allocation declared twice", Allocation: a.Name, Region: a.Region}
		}
		seenAllocs[a.Name] = true
		if a.Size == 0 {
			return nil, &LayoutError{Code: ErrCodeBadSize, Message: "allocation has zero size", Allocation: a.Name, Region: a.Region}
		}
		if a.End() < a.Offset {
			return nil, &LayoutError{Code: ErrCodeBadSize, Message: "allocation extent wraps the address space", Allocation: a.Name, Region: a.Region}
		}
		if _, ok := regionByName[a.Region]; !ok {
			return nil, &LayoutError{
				Code:       ErrCodeUnknownRegion,
				Message:    "allocation references undeclared region",
				Allocation: a.Name,
				Region:     a.Region,
			}
		}
		allocsByRegion[a.Region] = append(allocsByRegion[a.Region], a)
	}

	// (b) no two allocations in the same region overlap, unless the higher
	// priority one is an overlay and everything underneath it is reclaimable.
	for regionName, as := range allocsByRegion {
		region := regionByName[regionName]
		for _, a := range as {
			if a.End() > region.Length {
				return nil, &LayoutError{
					Code:       ErrCodeOutOfRegion,
					Message:    fmt.Sprintf("allocation [%#x,%#x) exceeds region length %#x", a.Offset, a.End(), region.Length),
					Allocation: a.Name,
					Region:     regionName,
				}
			}
		}
		for i := 0; i < len(as); i++ {
			for j := i + 1; j < len(as); j++ {
				if err := checkAllocPair(regionName, as[i], as[j]); err != nil {
					return nil, err
				}
			}
		}
	}

	// (c) regions fit their banks and cross no bank boundary.
	byBank := make(map[string][]Region)
	for _, r := range regions {
		bank, ok := bankByName[r.Bank]
		if !ok {
			return nil, &LayoutError{
				Code:    ErrCodeUnknownBank,
				Message: "region references undeclared bank",
				Region:  r.Name,
				Bank:    r.Bank,
			}
		}
		if r.Base < bank.Origin || r.End() > bank.End() {
			return nil, &LayoutError{
				Code:    ErrCodeOutOfBank,
				Message: fmt.Sprintf("region %s does not fit bank %s [%#x,%#x)", Extent{r.Base, r.Length}, bank.Name, bank.Origin, bank.End()),
				Region:  r.Name,
				Bank:    r.Bank,
			}
		}
		byBank[r.Bank] = append(byBank[r.Bank], r)
	}
	for bankName, rs := range byBank {
		sort.Slice(rs, func(i, j int) bool { return rs[i].Base < rs[j].Base })
		for i := 1; i < len(rs); i++ {
			prev, cur := rs[i-1], rs[i]
			if overlaps(prev.Base, prev.End(), cur.Base, cur.End()) {
				return nil, &LayoutError{
					Code:    ErrCodeRegionOverlap,
					Message: fmt.Sprintf("regions %s and %s overlap in bank %s", prev.Name, cur.Name, bankName),
					Region:  cur.Name,
					Bank:    bankName,
				}
			}
		}
	}

	// (d) alignment and protection granularity.
	for _, r := range regions {
		align := purposeAlignment(r.Purpose)
		if r.Length%align != 0 {
			return nil, &LayoutError{
				Code:    ErrCodeMisaligned,
				Message: fmt.Sprintf("region length %#x is not a multiple of %d", r.Length, align),
				Region:  r.Name,
				Bank:    r.Bank,
			}
		}
		if r.Purpose == PurposeDMAScratch && !isPowerOfTwo(r.Length) {
			return nil, &LayoutError{
				Code:    ErrCodeMisaligned,
				Message: fmt.Sprintf("dma region length %#x is not a power of two", r.Length),
				Region:  r.Name,
				Bank:    r.Bank,
			}
		}
	}
	for regionName, as := range allocsByRegion {
		region := regionByName[regionName]
		if region.Purpose != PurposeDMAScratch {
			continue
		}
		bank := bankByName[region.Bank]
		for _, a := range as {
			// The protection unit must enclose the allocation and still fit
			// the bank, or the hardware cannot guard it.
			prot := protectionSize(a.Size)
			// Checks (b) and (c) already pinned the allocation inside the
			// bank, so bank.End()-(region.Base+a.Offset) cannot wrap.
			if prot > bank.End()-(region.Base+a.Offset) {
				return nil, &LayoutError{
					Code:       ErrCodeMisaligned,
					Message:    fmt.Sprintf("protection unit %#x for allocation exceeds bank %s", prot, bank.Name),
					Allocation: a.Name,
					Region:     regionName,
				}
			}
		}
	}

	return newLayout(bankByName, regionByName, allocsByRegion), nil
}

// checkAllocPair enforces the overlap rule for one pair of allocations in
// the same region.
func checkAllocPair(regionName string, a, b Allocation) error {
	if !overlaps(a.Offset, a.End(), b.Offset, b.End()) {
		return nil
	}
	// Overlap is tolerated only between an overlay and a reclaimable
	// allocation of strictly lower priority.
	if allowedOverlay(a, b) || allowedOverlay(b, a) {
		return nil
	}
	return &LayoutError{
		Code:       ErrCodeAllocationOverlap,
		Message:    fmt.Sprintf("allocations %s and %s overlap", a.Name, b.Name),
		Allocation: b.Name,
		Region:     regionName,
	}
}

// allowedOverlay reports whether overlay may legitimately shadow under.
func allowedOverlay(overlay, under Allocation) bool {
	return overlay.Overlay && under.Reclaimable && under.Priority < overlay.Priority
}
