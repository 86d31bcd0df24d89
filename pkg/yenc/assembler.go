package yenc

import (
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/javi11/nntpcore/internal/errs"
)

// MultipartAssembler collects yEnc parts of a multi-part file and
// assembles them once all are present, enforcing non-overlap and metadata
// consistency as each part arrives.
type MultipartAssembler struct {
	totalParts    *uint32
	totalSize     *uint64
	filename      *string
	expectedCRC32 *uint32

	parts map[uint32]Decoded
}

// NewMultipartAssembler returns an empty assembler.
func NewMultipartAssembler() *MultipartAssembler {
	return &MultipartAssembler{parts: make(map[uint32]Decoded)}
}

// AddPart validates and inserts a decoded multi-part yEnc segment.
func (a *MultipartAssembler) AddPart(decoded Decoded) error {
	if !decoded.IsMultipart() {
		return fmt.Errorf("%w: cannot add single-part file to multi-part assembler", errs.ErrInvalidResponse)
	}

	partNum := *decoded.Header.Part
	total := *decoded.Header.Total

	if a.totalParts == nil {
		a.totalParts = &total
		size := decoded.Header.Size
		a.totalSize = &size
		name := decoded.Header.Name
		a.filename = &name
		if decoded.Trailer.CRC32 != nil {
			crc := *decoded.Trailer.CRC32
			a.expectedCRC32 = &crc
		}
	} else {
		if *a.totalParts != total {
			return fmt.Errorf("%w: inconsistent total parts: expected %d, got %d", errs.ErrInvalidResponse, *a.totalParts, total)
		}
		if *a.totalSize != decoded.Header.Size {
			return fmt.Errorf("%w: inconsistent total size: expected %d, got %d", errs.ErrInvalidResponse, *a.totalSize, decoded.Header.Size)
		}
		if *a.filename != decoded.Header.Name {
			return fmt.Errorf("%w: inconsistent filename: expected %q, got %q", errs.ErrInvalidResponse, *a.filename, decoded.Header.Name)
		}
	}

	if !decoded.VerifyCRC32() {
		return fmt.Errorf("%w: part %d CRC32 verification failed", errs.ErrInvalidResponse, partNum)
	}

	if decoded.Part != nil {
		for existingNum, existing := range a.parts {
			if existing.Part == nil {
				continue
			}
			overlaps := !(decoded.Part.End < existing.Part.Begin || decoded.Part.Begin > existing.Part.End)
			if overlaps {
				return fmt.Errorf("%w: part %d range (%d-%d) overlaps with part %d range (%d-%d)",
					errs.ErrInvalidResponse, partNum, decoded.Part.Begin, decoded.Part.End,
					existingNum, existing.Part.Begin, existing.Part.End)
			}
		}
	}

	if _, exists := a.parts[partNum]; exists {
		return fmt.Errorf("%w: part %d already added", errs.ErrInvalidResponse, partNum)
	}

	a.parts[partNum] = decoded
	return nil
}

// IsComplete reports whether every expected part number has been added.
func (a *MultipartAssembler) IsComplete() bool {
	if a.totalParts == nil {
		return false
	}
	return len(a.parts) == int(*a.totalParts)
}

// PartsReceived returns how many parts have been added so far.
func (a *MultipartAssembler) PartsReceived() int { return len(a.parts) }

// TotalParts returns the expected part count, once known.
func (a *MultipartAssembler) TotalParts() (total uint32, ok bool) {
	if a.totalParts == nil {
		return 0, false
	}
	return *a.totalParts, true
}

// MissingParts returns the 1-based part numbers not yet received.
func (a *MultipartAssembler) MissingParts() []uint32 {
	if a.totalParts == nil {
		return nil
	}
	var missing []uint32
	for n := uint32(1); n <= *a.totalParts; n++ {
		if _, ok := a.parts[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

// Assemble concatenates every part's data into the final file buffer, once
// IsComplete is true.
func (a *MultipartAssembler) Assemble() ([]byte, error) {
	if !a.IsComplete() {
		total := uint32(0)
		if a.totalParts != nil {
			total = *a.totalParts
		}
		return nil, fmt.Errorf("%w: cannot assemble: missing %d parts", errs.ErrInvalidResponse, int(total)-len(a.parts))
	}

	if a.totalSize == nil {
		return nil, fmt.Errorf("%w: no parts added yet", errs.ErrInvalidResponse)
	}

	result := make([]byte, *a.totalSize)

	nums := make([]uint32, 0, len(a.parts))
	for n := range a.parts {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	for _, n := range nums {
		decoded := a.parts[n]
		if decoded.Part == nil {
			return nil, fmt.Errorf("%w: part missing part info", errs.ErrInvalidResponse)
		}

		begin := decoded.Part.Begin - 1
		end := decoded.Part.End

		if end > *a.totalSize {
			return nil, fmt.Errorf("%w: part range %d-%d exceeds total size %d", errs.ErrInvalidResponse, decoded.Part.Begin, decoded.Part.End, *a.totalSize)
		}

		expectedLen := end - begin
		if uint64(len(decoded.Data)) != expectedLen {
			return nil, fmt.Errorf("%w: part data length %d doesn't match range %d-%d (expected %d)",
				errs.ErrInvalidResponse, len(decoded.Data), decoded.Part.Begin, decoded.Part.End, expectedLen)
		}

		copy(result[begin:end], decoded.Data)
	}

	return result, nil
}

// VerifyFinalCRC32 checks data against the full-file crc32 carried by the
// first part added, if that part had one; a crc32 on a later part is not
// recorded. Returns false when no full-file CRC is known.
func (a *MultipartAssembler) VerifyFinalCRC32(data []byte) bool {
	if a.expectedCRC32 == nil {
		return false
	}
	return crc32.ChecksumIEEE(data) == *a.expectedCRC32
}

// Filename returns the expected filename, once the first part has been
// added.
func (a *MultipartAssembler) Filename() (string, bool) {
	if a.filename == nil {
		return "", false
	}
	return *a.filename, true
}

// ExpectedSize returns the expected total file size, once the first part
// has been added.
func (a *MultipartAssembler) ExpectedSize() (uint64, bool) {
	if a.totalSize == nil {
		return 0, false
	}
	return *a.totalSize, true
}
