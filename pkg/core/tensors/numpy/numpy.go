// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package numpy reads and writes tensors in NumPy's npy and npz file formats.
//
// Observation batches recorded by Python RL tooling are usually saved as `.npy` (one array) or
// `.npz` (several named arrays) files, shaped `[batch_size, channels, height, width]`.
package numpy

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/imgaug/pkg/core/shapes"
	"github.com/gomlx/imgaug/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const npyMagic = "\x93NUMPY"

// FromNpyFile reads a .npy file and returns a tensors.Tensor.
func FromNpyFile(filePath string) (*tensors.Tensor, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open .npy file %q", filePath)
	}
	defer func() { _ = file.Close() }()
	t, err := FromNpyReader(file)
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %q", filePath)
	}
	return t, nil
}

// FromNpyReader reads a .npy file from an io.Reader and returns a tensors.Tensor.
func FromNpyReader(r io.Reader) (*tensors.Tensor, error) {
	preamble := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, preamble); err != nil {
		return nil, errors.Wrapf(err, "failed to read .npy magic string")
	}
	if string(preamble[:len(npyMagic)]) != npyMagic {
		return nil, errors.New("invalid .npy file format: magic string mismatch")
	}
	major, minor := preamble[len(npyMagic)], preamble[len(npyMagic)+1]

	var headerLen uint32
	switch {
	case major == 1:
		var lenBytes [2]byte
		if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
			return nil, errors.Wrapf(err, "failed to read header length (v1.0)")
		}
		headerLen = uint32(binary.LittleEndian.Uint16(lenBytes[:]))
	case major >= 2:
		var lenBytes [4]byte
		if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
			return nil, errors.Wrapf(err, "failed to read header length (v2.0+)")
		}
		headerLen = binary.LittleEndian.Uint32(lenBytes[:])
	default:
		return nil, errors.Errorf("unsupported .npy version: %d.%d", major, minor)
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, errors.Wrapf(err, "failed to read header")
	}
	dtypeStr, dims, fortranOrder, err := parseNpyHeader(string(headerBytes))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to parse .npy header")
	}
	if strings.HasPrefix(dtypeStr, ">") {
		return nil, errors.Errorf("big-endian .npy files (%q) are not supported", dtypeStr)
	}
	dtype, err := npyDTypeToDType(dtypeStr)
	if err != nil {
		return nil, err
	}
	for _, dim := range dims {
		if dim <= 0 {
			return nil, errors.Errorf(".npy arrays with empty axes are not supported, got shape %v", dims)
		}
	}
	shape := shapes.Make(dtype, dims...)
	tensor := tensors.FromShape(shape)
	accessErr := tensor.MutableBytes(func(data []byte) {
		if !fortranOrder || shape.Rank() <= 1 {
			if _, err = io.ReadFull(r, data); err != nil {
				err = errors.Wrapf(err, "failed to read tensor data (expected %d bytes)", len(data))
			}
			return
		}
		fortranData := make([]byte, len(data))
		if _, err = io.ReadFull(r, fortranData); err != nil {
			err = errors.Wrapf(err, "failed to read tensor data (expected %d bytes)", len(data))
			return
		}
		err = FortranToCLayout(int(dtype.Memory()), dims, fortranData, data)
	})
	if accessErr != nil {
		return nil, accessErr
	}
	if err != nil {
		tensor.Finalize()
		return nil, err
	}
	klog.V(2).Infof("numpy: read tensor %s", shape)
	return tensor, nil
}

// FortranToCLayout converts the data of an array stored in column-major order (Fortran) to
// row-major order (C), used by tensors.
func FortranToCLayout(dtypeSize int, dims []int, fortranData []byte, cData []byte) error {
	if dtypeSize <= 0 {
		return errors.Errorf("dtypeSize must be positive, got %d", dtypeSize)
	}
	totalElements := 1
	for _, d := range dims {
		totalElements *= d
	}
	expectedBytes := totalElements * dtypeSize
	if len(fortranData) != expectedBytes {
		return errors.Errorf("fortranData has incorrect size: got %d bytes, want %d", len(fortranData), expectedBytes)
	}
	if len(cData) != expectedBytes {
		return errors.Errorf("cData has incorrect size: got %d bytes, want %d", len(cData), expectedBytes)
	}
	coordinates := make([]int, len(dims))
	for cIndex := 0; cIndex < totalElements; cIndex++ {
		tempIndex := cIndex
		for i := len(dims) - 1; i >= 0; i-- {
			coordinates[i] = tempIndex % dims[i]
			tempIndex /= dims[i]
		}
		fortranIndex := 0
		multiplier := 1
		for i := range dims {
			fortranIndex += coordinates[i] * multiplier
			multiplier *= dims[i]
		}
		srcOffset := fortranIndex * dtypeSize
		dstOffset := cIndex * dtypeSize
		copy(cData[dstOffset:dstOffset+dtypeSize], fortranData[srcOffset:srcOffset+dtypeSize])
	}
	return nil
}

var (
	reDescr   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	reFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	reShape   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// parseNpyHeader extracts dtype, shape, and fortran_order from the .npy header string.
// Example: "{'descr': '<f4', 'fortran_order': False, 'shape': (1, 2, 3), }"
func parseNpyHeader(header string) (dtype string, shape []int, fortranOrder bool, err error) {
	mDescr := reDescr.FindStringSubmatch(header)
	if len(mDescr) < 2 {
		err = errors.Errorf("could not find 'descr' in header: %q", header)
		return
	}
	dtype = mDescr[1]

	mFortran := reFortran.FindStringSubmatch(header)
	if len(mFortran) < 2 {
		err = errors.Errorf("could not find 'fortran_order' in header: %q", header)
		return
	}
	fortranOrder = mFortran[1] == "True"

	mShape := reShape.FindStringSubmatch(header)
	if len(mShape) < 2 {
		err = errors.Errorf("could not find 'shape' in header: %q", header)
		return
	}
	shape = []int{}
	for _, p := range strings.Split(mShape[1], ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			// Trailing comma, like in "(10,)", or scalar "()".
			continue
		}
		val, pErr := strconv.Atoi(p)
		if pErr != nil {
			err = errors.Wrapf(pErr, "invalid shape value %q in header", p)
			return
		}
		shape = append(shape, val)
	}
	return
}

// npyDTypes maps the NumPy type codes (without byte order) to the supported dtypes.
var npyDTypes = map[string]dtypes.DType{
	"u1": dtypes.Uint8,
	"i4": dtypes.Int32,
	"f2": dtypes.Float16,
	"f4": dtypes.Float32,
	"f8": dtypes.Float64,
}

// npyDTypeToDType converts a NumPy dtype string to a dtypes.DType.
func npyDTypeToDType(npyType string) (dtypes.DType, error) {
	code := strings.TrimLeft(npyType, "<>=|")
	if dtype, found := npyDTypes[code]; found {
		return dtype, nil
	}
	return dtypes.InvalidDType, errors.Errorf("unsupported NumPy dtype %q", npyType)
}

// dtypeToNpy converts a dtypes.DType to a NumPy dtype string.
// It assumes little-endian ('<') for multi-byte types.
func dtypeToNpy(dtype dtypes.DType) (string, error) {
	for code, d := range npyDTypes {
		if d == dtype {
			if dtype == dtypes.Uint8 {
				return "|" + code, nil
			}
			return "<" + code, nil
		}
	}
	return "", errors.Errorf("unsupported DType for .npy: %s", dtype)
}

// ToNpyWriter serializes a tensors.Tensor to an io.Writer in .npy format (version 1.0).
func ToNpyWriter(tensor *tensors.Tensor, w io.Writer) error {
	shape := tensor.Shape()
	descr, err := dtypeToNpy(shape.DType)
	if err != nil {
		return err
	}
	var shapeTuple string
	switch shape.Rank() {
	case 0:
		shapeTuple = "()"
	case 1:
		shapeTuple = fmt.Sprintf("(%d,)", shape.Dimensions[0])
	default:
		dimsStr := make([]string, shape.Rank())
		for i, dim := range shape.Dimensions {
			dimsStr[i] = strconv.Itoa(dim)
		}
		shapeTuple = fmt.Sprintf("(%s)", strings.Join(dimsStr, ", "))
	}

	// Preamble (magic + version + header length) is 10 bytes, and the whole header must be
	// padded to a multiple of 16, terminated by a newline.
	var headerBuf bytes.Buffer
	_, _ = fmt.Fprintf(&headerBuf, "{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, shapeTuple)
	for (10+headerBuf.Len()+1)%16 != 0 {
		headerBuf.WriteByte(' ')
	}
	headerBuf.WriteByte('\n')

	var preamble bytes.Buffer
	preamble.WriteString(npyMagic)
	preamble.Write([]byte{1, 0})
	_ = binary.Write(&preamble, binary.LittleEndian, uint16(headerBuf.Len()))
	if _, err := w.Write(preamble.Bytes()); err != nil {
		return errors.Wrap(err, "failed to write .npy preamble")
	}
	if _, err := w.Write(headerBuf.Bytes()); err != nil {
		return errors.Wrap(err, "failed to write .npy header")
	}
	var writeErr error
	err = tensor.ConstBytes(func(data []byte) {
		if _, writeErr = w.Write(data); writeErr != nil {
			writeErr = errors.Wrap(writeErr, "failed to write tensor data")
		}
	})
	if err != nil {
		return err
	}
	return writeErr
}

// ToNpyFile serializes a tensors.Tensor to a .npy file.
func ToNpyFile(tensor *tensors.Tensor, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create .npy file %q", filePath)
	}
	if err = ToNpyWriter(tensor, file); err != nil {
		_ = file.Close()
		return errors.WithMessagef(err, "writing %q", filePath)
	}
	return errors.Wrapf(file.Close(), "closing %q", filePath)
}

// FromNpzFile reads a .npz file and returns a map of tensor names to tensors.Tensor.
func FromNpzFile(filePath string) (map[string]*tensors.Tensor, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open .npz file %q", filePath)
	}
	defer func() { _ = file.Close() }()
	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat .npz file %q", filePath)
	}
	return FromNpzReader(file, info.Size())
}

// FromNpzReader reads a .npz archive (a zip file of .npy files), returning a map of tensor names
// to tensors.Tensor.
func FromNpzReader(r io.ReaderAt, size int64) (map[string]*tensors.Tensor, error) {
	zipReader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create zip reader for .npz")
	}
	results := make(map[string]*tensors.Tensor)
	for _, f := range zipReader.File {
		cleanPath := path.Clean(f.Name)
		if path.IsAbs(cleanPath) || strings.HasPrefix(cleanPath, "..") {
			return nil, errors.Errorf("invalid path in .npz archive: %q (normalized to %q)", f.Name, cleanPath)
		}
		if !strings.HasSuffix(f.Name, ".npy") {
			klog.V(1).Infof("numpy: skipping non-.npy entry %q in .npz archive", f.Name)
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open %q within .npz", f.Name)
		}
		tensor, err := FromNpyReader(rc)
		_ = rc.Close()
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to read tensor %q from .npz", f.Name)
		}
		results[strings.TrimSuffix(f.Name, ".npy")] = tensor
	}
	return results, nil
}

// ToNpzWriter serializes a map of tensors to an io.Writer as a .npz archive.
func ToNpzWriter(tensorsMap map[string]*tensors.Tensor, w io.Writer) error {
	zipWriter := zip.NewWriter(w)
	for name, tensor := range tensorsMap {
		npyName := name + ".npy"
		fileWriter, err := zipWriter.Create(npyName)
		if err != nil {
			return errors.Wrapf(err, "failed to create %q in .npz archive", npyName)
		}
		if err := ToNpyWriter(tensor, fileWriter); err != nil {
			return errors.WithMessagef(err, "failed to write tensor %q to .npz archive", name)
		}
	}
	return errors.Wrap(zipWriter.Close(), "failed to close zip archive")
}

// ToNpzFile serializes a map of tensors to a .npz file.
func ToNpzFile(tensorsMap map[string]*tensors.Tensor, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create .npz file %q", filePath)
	}
	if err = ToNpzWriter(tensorsMap, file); err != nil {
		_ = file.Close()
		return err
	}
	return errors.Wrapf(file.Close(), "closing %q", filePath)
}
