package object

import "errors"

var (
	// ErrCorruptObject reports stored or transferred object bytes that do not
	// match their declared framing: envelope length, tree entry layout,
	// delta source/target sizes.
	ErrCorruptObject = errors.New("corrupt object")

	// ErrUnsupportedPackFeature reports a pack entry this decoder does not
	// handle, such as an offset delta or a reserved type code.
	ErrUnsupportedPackFeature = errors.New("unsupported pack feature")

	// ErrMissingBase reports a ref-delta whose base object is not in the pack.
	ErrMissingBase = errors.New("delta base not found")
)
