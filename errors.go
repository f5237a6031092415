package main

import "errors"

var (
	ErrParseWidth            = errors.New("pngify: invalid width")
	ErrParseHeight           = errors.New("pngify: invalid height")
	ErrParseBuffer           = errors.New("pngify: invalid buffer size")
	ErrParseColorType        = errors.New("pngify: invalid color type (0, 2, 4, 6, g, ga, rgb, rgba are supported)")
	ErrParseBitDepth         = errors.New("pngify: invalid bit depth (8 and 16 are supported)")
	ErrWidthAndHeightDefined = errors.New("pngify: cannot define both a width and height of the image")
	ErrReadFail              = errors.New("pngify: unable to open for reading")
	ErrWriteFail             = errors.New("pngify: unable to open for writing")
	ErrInputDoesNotExist     = errors.New("pngify: input file does not exist")
	ErrInputNotAFile         = errors.New("pngify: input is not a file")
	ErrReadChunk             = errors.New("pngify: unable to read chunk")
	ErrInvalidCRC            = errors.New("pngify: unable to verify crc")
	ErrInvalidHeader         = errors.New("pngify: invalid header")
	ErrTrailingData          = errors.New("pngify: IDAT data after the end of the zlib stream")
	ErrEncode                = errors.New("pngify: unable to encode as PNG")
	ErrDecode                = errors.New("pngify: unable to decode from PNG")
	ErrTrim                  = errors.New("pngify: unable to trim")
)
