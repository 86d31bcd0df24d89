// Package assembler turns a downloaded set of yEnc article bodies into the
// final file bytes an NzbFile describes, delegating multi-part composition
// to pkg/yenc's MultipartAssembler.
package assembler

import (
	"fmt"

	"github.com/javi11/nntpcore/internal/errs"
	"github.com/javi11/nntpcore/pkg/nzb"
	"github.com/javi11/nntpcore/pkg/yenc"
)

// PartStatus is the lifecycle state of one segment within an
// ArticleAssembler.
type PartStatus int

const (
	PartPending PartStatus = iota
	PartDownloaded
	PartMissing
	PartCorrupted
)

// PartInfo tracks one NZB segment's download status and, once downloaded,
// its decoded yEnc part.
type PartInfo struct {
	Segment nzb.NzbSegment
	Status  PartStatus
	Decoded *yenc.Decoded
}

// ArticleAssembler reassembles one NzbFile's segments into the original
// file bytes.
type ArticleAssembler struct {
	file      nzb.NzbFile
	parts     map[uint32]*PartInfo
	multipart *yenc.MultipartAssembler
}

// New seeds an assembler with one Pending PartInfo per segment in file.
func New(file nzb.NzbFile) *ArticleAssembler {
	parts := make(map[uint32]*PartInfo, len(file.Segments))
	for _, seg := range file.Segments {
		parts[seg.Number] = &PartInfo{Segment: seg, Status: PartPending}
	}
	return &ArticleAssembler{file: file, parts: parts, multipart: yenc.NewMultipartAssembler()}
}

// AddPartBytes decodes yEnc-encoded raw bytes for segment number n,
// verifying its CRC32 and, for multi-segment files, handing it to the
// internal multipart assembler for overlap/metadata consistency checks.
// On CRC failure the part is marked Corrupted and the error is returned so
// the caller may retry.
func (a *ArticleAssembler) AddPartBytes(n uint32, raw []byte) error {
	info, ok := a.parts[n]
	if !ok {
		return fmt.Errorf("%w: no such segment number %d", errs.ErrInvalidResponse, n)
	}

	decoded, err := yenc.Decode(raw)
	if err != nil {
		return err
	}

	if !decoded.VerifyCRC32() {
		info.Status = PartCorrupted
		return fmt.Errorf("%w: segment %d CRC32 verification failed", errs.ErrInvalidResponse, n)
	}

	if len(a.file.Segments) > 1 {
		if err := a.multipart.AddPart(decoded); err != nil {
			info.Status = PartCorrupted
			return err
		}
	}

	info.Status = PartDownloaded
	info.Decoded = &decoded
	return nil
}

// MarkMissing records that the server reported NoSuchArticle for segment n.
func (a *ArticleAssembler) MarkMissing(n uint32) {
	if info, ok := a.parts[n]; ok {
		info.Status = PartMissing
	}
}

// MarkCorrupted records an externally-detected integrity failure for
// segment n.
func (a *ArticleAssembler) MarkCorrupted(n uint32) {
	if info, ok := a.parts[n]; ok {
		info.Status = PartCorrupted
	}
}

// IsComplete reports whether every segment has moved past Pending.
func (a *ArticleAssembler) IsComplete() bool {
	for _, info := range a.parts {
		if info.Status == PartPending {
			return false
		}
	}
	return true
}

// AllPartsValid reports whether every segment was successfully downloaded.
func (a *ArticleAssembler) AllPartsValid() bool {
	for _, info := range a.parts {
		if info.Status != PartDownloaded {
			return false
		}
	}
	return true
}

// Assemble returns the final file bytes once every segment is Downloaded.
// Single-segment files return the sole decoded part directly; multi-segment
// files delegate to the internal multipart assembler. Final-file CRC
// verification is not performed here — per-part CRCs were already checked
// in AddPartBytes.
func (a *ArticleAssembler) Assemble() ([]byte, error) {
	if !a.AllPartsValid() {
		return nil, fmt.Errorf("%w: cannot assemble: not every segment is downloaded", errs.ErrInvalidResponse)
	}

	if len(a.file.Segments) == 1 {
		for _, info := range a.parts {
			return info.Decoded.Data, nil
		}
	}

	return a.multipart.Assemble()
}
