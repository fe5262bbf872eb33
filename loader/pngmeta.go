package loader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

var pngSignature = []byte{137, 80, 78, 71, 13, 10, 26, 10}

// ScanPNGText walks the chunks of a PNG stream and returns its textual
// metadata as keyword to content pairs. Both tEXt and uncompressed iTXt
// chunks are collected; everything else is skipped. ComfyUI writes its
// "prompt" and "workflow" payloads as tEXt, A1111 style "parameters" are
// often iTXt.
func ScanPNGText(r io.Reader) (map[string]string, error) {
	header := make([]byte, 8)
	_, err := io.ReadFull(r, header)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(header, pngSignature) {
		return nil, errors.New("not a valid PNG file")
	}

	txtChunks := make(map[string]string)

	for {
		var length uint32
		err = binary.Read(r, binary.BigEndian, &length)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		chunkType := make([]byte, 4)
		_, err = io.ReadFull(r, chunkType)
		if err != nil {
			return nil, err
		}

		switch string(chunkType) {
		case "tEXt":
			chunkData := make([]byte, length)
			_, err = io.ReadFull(r, chunkData)
			if err != nil {
				return nil, err
			}

			keywordEnd := bytes.IndexByte(chunkData, 0)
			if keywordEnd == -1 {
				return nil, errors.New("malformed tEXt chunk")
			}

			keyword := string(chunkData[:keywordEnd])
			txtChunks[keyword] = string(chunkData[keywordEnd+1:])
		case "iTXt":
			chunkData := make([]byte, length)
			_, err = io.ReadFull(r, chunkData)
			if err != nil {
				return nil, err
			}

			keyword, content, ok := parseITXt(chunkData)
			if ok {
				txtChunks[keyword] = content
			}
		default:
			// Skip the chunk data if it's not a text chunk
			_, err = io.CopyN(io.Discard, r, int64(length))
			if err != nil {
				return nil, err
			}
		}

		// Skip the CRC
		_, err = io.CopyN(io.Discard, r, 4)
		if err != nil {
			return nil, err
		}
	}

	return txtChunks, nil
}

// parseITXt splits an iTXt chunk into keyword and text. Layout is:
// keyword\0 compression-flag compression-method language\0 translated\0 text.
// Compressed payloads are ignored.
func parseITXt(data []byte) (string, string, bool) {
	keywordEnd := bytes.IndexByte(data, 0)
	if keywordEnd == -1 || len(data) < keywordEnd+3 {
		return "", "", false
	}
	keyword := string(data[:keywordEnd])
	compressed := data[keywordEnd+1] != 0

	rest := data[keywordEnd+3:]
	langEnd := bytes.IndexByte(rest, 0)
	if langEnd == -1 {
		return "", "", false
	}
	rest = rest[langEnd+1:]
	translatedEnd := bytes.IndexByte(rest, 0)
	if translatedEnd == -1 {
		return "", "", false
	}
	if compressed {
		return "", "", false
	}
	return keyword, string(rest[translatedEnd+1:]), true
}
