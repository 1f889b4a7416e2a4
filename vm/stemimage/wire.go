// Package stemimage saves stem variables to, and restores them from,
// CBOR encoded images.
package stemimage

import (
	"fmt"
	"os"

	"github.com/chazu/rxcore/vm"
	"github.com/fxamacker/cbor/v2"
)

// Version is written into every image.
const Version = 1

// cborEncMode uses canonical options so equal stems encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("stemimage: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Image is the encoded form of a stem. Elements appear in table order.
type Image struct {
	Version    int       `cbor:"1,keyasint"`
	Name       string    `cbor:"2,keyasint"`
	HasDefault bool      `cbor:"3,keyasint"`
	Default    any       `cbor:"4,keyasint,omitempty"`
	Elements   []Element `cbor:"5,keyasint"`
}

// Element is one assigned tail.
type Element struct {
	Tail  string `cbor:"1,keyasint"`
	Value any    `cbor:"2,keyasint"`
}

// checkValue accepts the scalar values an image can carry.
func checkValue(v vm.Value) error {
	switch v.(type) {
	case nil, string, []byte, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return nil
	}
	return fmt.Errorf("stemimage: cannot encode value of type %T", v)
}

// FromStem builds the image of s.
func FromStem(s *vm.Stem) (*Image, error) {
	img := &Image{
		Version:  Version,
		Name:     s.Name(),
		Elements: make([]Element, 0, s.Items()),
	}
	if v, ok := s.Default(); ok {
		if err := checkValue(v); err != nil {
			return nil, fmt.Errorf("%s default: %w", s.Name(), err)
		}
		img.HasDefault = true
		img.Default = v
	}
	for tail, v := range s.All() {
		if err := checkValue(v); err != nil {
			return nil, fmt.Errorf("%s: %w", s.CompoundName(tail), err)
		}
		img.Elements = append(img.Elements, Element{Tail: tail, Value: v})
	}
	return img, nil
}

// Stem rebuilds a stem from the image.
func (img *Image) Stem() *vm.Stem {
	s := vm.NewStem(img.Name)
	if img.HasDefault {
		s.Assign(img.Default)
	}
	for _, e := range img.Elements {
		s.Set(e.Tail, e.Value)
	}
	return s
}

// MarshalStem serializes a stem to CBOR bytes.
func MarshalStem(s *vm.Stem) ([]byte, error) {
	img, err := FromStem(s)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(img)
}

// UnmarshalImage deserializes an image without building a stem.
func UnmarshalImage(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("stemimage: unmarshal: %w", err)
	}
	if img.Version != Version {
		return nil, fmt.Errorf("stemimage: unsupported version %d", img.Version)
	}
	return &img, nil
}

// UnmarshalStem deserializes a stem from CBOR bytes.
func UnmarshalStem(data []byte) (*vm.Stem, error) {
	img, err := UnmarshalImage(data)
	if err != nil {
		return nil, err
	}
	return img.Stem(), nil
}

// WriteFile saves s to path.
func WriteFile(path string, s *vm.Stem) error {
	data, err := MarshalStem(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

// ReadFile loads the image stored at path.
func ReadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return UnmarshalImage(data)
}
