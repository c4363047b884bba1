package zarr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))

// decompress decodes a chunk according to its compressor.  A nil compressor
// means the chunk is stored raw.
func decompress(c *CompressorConfig, data []byte) ([]byte, error) {
	if c == nil {
		return data, nil
	}
	switch c.ID {
	case "blosc":
		return decodeBlosc(data)
	case "zstd":
		return zstdDecoder.DecodeAll(data, nil)
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "zlib":
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "lz4":
		// numcodecs prefixes the lz4 block with its uncompressed size.
		if len(data) < 4 {
			return nil, fmt.Errorf("lz4 chunk of %d bytes is too short", len(data))
		}
		n := int(binary.LittleEndian.Uint32(data))
		out := make([]byte, n)
		written, err := lz4.UncompressBlock(data[4:], out)
		if err != nil {
			return nil, fmt.Errorf("lz4: %v", err)
		}
		return out[:written], nil
	}
	return nil, fmt.Errorf("unsupported compressor %q", c.ID)
}

// Blosc header flags.
const (
	bloscDoShuffle    = 0x1
	bloscMemcpyed     = 0x2
	bloscDoBitShuffle = 0x4
	bloscDontSplit    = 0x10

	bloscHeaderSize = 16
	bloscMaxSplits  = 16
	bloscMinBuffer  = 128
)

// Blosc inner compressor codes stored in the top 3 bits of the flags.
const (
	bloscLZ = iota
	bloscLZ4
	bloscSnappy
	bloscZlib
	bloscZstd
)

// decodeBlosc decodes a blosc1 frame.  Bit shuffle and the blosclz codec are
// not supported.
func decodeBlosc(data []byte) ([]byte, error) {
	if len(data) < bloscHeaderSize {
		return nil, fmt.Errorf("blosc frame of %d bytes is too short", len(data))
	}
	flags := data[2]
	typesize := int(data[3])
	nbytes := int(binary.LittleEndian.Uint32(data[4:]))
	blocksize := int(binary.LittleEndian.Uint32(data[8:]))
	cbytes := int(binary.LittleEndian.Uint32(data[12:]))
	if cbytes > len(data) {
		return nil, fmt.Errorf("blosc frame claims %d bytes, got %d", cbytes, len(data))
	}
	if flags&bloscMemcpyed != 0 {
		if bloscHeaderSize+nbytes > len(data) {
			return nil, fmt.Errorf("truncated memcpyed blosc frame")
		}
		return append([]byte(nil), data[bloscHeaderSize:bloscHeaderSize+nbytes]...), nil
	}
	if flags&bloscDoBitShuffle != 0 {
		return nil, fmt.Errorf("blosc bit shuffle is not supported")
	}
	if nbytes == 0 {
		return []byte{}, nil
	}
	if blocksize <= 0 || typesize <= 0 {
		return nil, fmt.Errorf("bad blosc header: blocksize %d, typesize %d", blocksize, typesize)
	}
	codec := int(flags >> 5)

	nblocks := (nbytes + blocksize - 1) / blocksize
	starts := data[bloscHeaderSize:]
	if len(starts) < 4*nblocks {
		return nil, fmt.Errorf("truncated blosc block starts")
	}
	out := make([]byte, nbytes)
	for b := 0; b < nblocks; b++ {
		bsize := blocksize
		leftover := false
		if b == nblocks-1 && nbytes%blocksize != 0 {
			bsize = nbytes % blocksize
			leftover = true
		}
		nsplits := 1
		if flags&bloscDontSplit == 0 && typesize <= bloscMaxSplits && blocksize/typesize >= bloscMinBuffer && !leftover {
			nsplits = typesize
		}
		pos := int(binary.LittleEndian.Uint32(starts[4*b:]))
		block := out[b*blocksize : b*blocksize+bsize]
		if err := bloscBlock(data, pos, block, nsplits, codec); err != nil {
			return nil, fmt.Errorf("blosc block %d: %v", b, err)
		}
		if flags&bloscDoShuffle != 0 && typesize > 1 {
			unshuffle(block, typesize)
		}
	}
	return out, nil
}

// bloscBlock decodes the streams of one block starting at pos into block.
func bloscBlock(data []byte, pos int, block []byte, nsplits, codec int) error {
	neblock := len(block) / nsplits
	for s := 0; s < nsplits; s++ {
		if pos+4 > len(data) {
			return fmt.Errorf("truncated stream header")
		}
		csize := int(int32(binary.LittleEndian.Uint32(data[pos:])))
		pos += 4
		if csize < 0 || pos+csize > len(data) {
			return fmt.Errorf("bad stream size %d", csize)
		}
		src := data[pos : pos+csize]
		dst := block[s*neblock : (s+1)*neblock]
		pos += csize
		if csize == neblock {
			copy(dst, src)
			continue
		}
		n, err := bloscInner(codec, src, dst)
		if err != nil {
			return err
		}
		if n != neblock {
			return fmt.Errorf("stream decoded to %d bytes, expected %d", n, neblock)
		}
	}
	return nil
}

func bloscInner(codec int, src, dst []byte) (int, error) {
	switch codec {
	case bloscLZ4:
		return lz4.UncompressBlock(src, dst)
	case bloscSnappy:
		out, err := snappy.Decode(nil, src)
		if err != nil {
			return 0, err
		}
		return copy(dst, out), nil
	case bloscZlib:
		r, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return 0, err
		}
		defer r.Close()
		return io.ReadFull(r, dst)
	case bloscZstd:
		out, err := zstdDecoder.DecodeAll(src, nil)
		if err != nil {
			return 0, err
		}
		return copy(dst, out), nil
	case bloscLZ:
		return 0, fmt.Errorf("blosclz codec is not supported")
	}
	return 0, fmt.Errorf("unknown blosc codec %d", codec)
}

// unshuffle reverses blosc's byte shuffle in place.
func unshuffle(block []byte, typesize int) {
	nelem := len(block) / typesize
	shuffled := append([]byte(nil), block[:nelem*typesize]...)
	for j := 0; j < typesize; j++ {
		for i := 0; i < nelem; i++ {
			block[i*typesize+j] = shuffled[j*nelem+i]
		}
	}
}
