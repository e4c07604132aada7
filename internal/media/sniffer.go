package media

import (
	"bytes"
	"errors"
	"io"
)

type Container string

const (
	ContainerMP4       Container = "mp4"
	ContainerQuickTime Container = "mov"
	ContainerMatroska  Container = "mkv"
	ContainerWebM      Container = "webm"
	ContainerAVI       Container = "avi"
	ContainerMPEGTS    Container = "ts"
)

var ErrUnknownContainer = errors.New("unknown media container")

// Detect reads up to 512 bytes from r and classifies the container.
func Detect(r io.Reader) (Container, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return DetectHead(head[:n])
}

func DetectHead(head []byte) (Container, error) {
	if len(head) == 0 {
		return "", ErrUnknownContainer
	}

	if isFtyp(head) {
		if bytes.Equal(head[8:10], []byte("qt")) {
			return ContainerQuickTime, nil
		}
		return ContainerMP4, nil
	}
	if isEBML(head) {
		if bytes.Contains(head, []byte("webm")) {
			return ContainerWebM, nil
		}
		return ContainerMatroska, nil
	}
	if isAVI(head) {
		return ContainerAVI, nil
	}
	if isMPEGTS(head) {
		return ContainerMPEGTS, nil
	}

	return "", ErrUnknownContainer
}

func isFtyp(head []byte) bool {
	return len(head) >= 12 && bytes.Equal(head[4:8], []byte("ftyp"))
}

func isEBML(head []byte) bool {
	return len(head) >= 4 &&
		head[0] == 0x1a &&
		head[1] == 0x45 &&
		head[2] == 0xdf &&
		head[3] == 0xa3
}

func isAVI(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("AVI "))
}

// MPEG-TS packets are 188 bytes and start with the 0x47 sync byte.
func isMPEGTS(head []byte) bool {
	if len(head) < 189 {
		return false
	}
	return head[0] == 0x47 && head[188] == 0x47
}
