package images

import (
	"crypto/md5"
	"fmt"

	"gocv.io/x/gocv"
)

// ComputeMatChecksum generates a deterministic checksum for a Mat so two
// renderings of the same frame can be compared byte for byte.
//
// Arguments:
// - mat: The Mat to compute checksum for.
//
// Returns:
// - A hex-encoded MD5 checksum string, or "empty" for an empty Mat.
//
// Example:
//
// ```go
//
//	checksum := ComputeMatChecksum(still.Frame)
//	fmt.Printf("Still checksum: %s\n", checksum)
//
// ```
func ComputeMatChecksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}

	data, err := mat.DataPtrUint8()
	if err != nil {
		// Non-contiguous or non-8-bit Mats fall back to an encoded form.
		buf, encErr := gocv.IMEncode(gocv.PNGFileExt, mat)
		if encErr != nil {
			return "unreadable"
		}
		defer buf.Close()
		data = buf.GetBytes()
	}
	hash := md5.New()
	hash.Write(data)
	return fmt.Sprintf("%x", hash.Sum(nil))
}
