package vm

import (
	"encoding/binary"
	"errors"
	"os"

	"github.com/rs/zerolog"
)

// Header offsets and sizes, bit-exact per §4.2/§6. Little-endian
// throughout.
const (
	headerSize         = 16
	headerMagicOffset  = 0
	headerVersionOff   = 4
	headerReservedOff  = 6
	headerCodeSizeOff  = 8
	headerEntryOff     = 12
	maxBytecodeSize    = 10 * 1024 * 1024 // 10 MiB
	bytecodeVersion    = 0x0001
)

// bytecodeMagic is "NBVM" in ASCII, the exact 4 bytes required at offset 0.
var bytecodeMagic = [4]byte{0x4E, 0x42, 0x56, 0x4D}

// LoadImage reads a binary program image from path, validates its 16-byte
// header in the spec's short-circuit order (file size floor, file size
// ceiling, magic, version, declared code size, entry point), strips the
// header, and returns the trailing code_size bytes plus the entry point.
// The returned buffer is uniquely owned by the caller; LoadImage retains
// nothing (§4.2's ownership rule).
func LoadImage(path string, log zerolog.Logger) (code []byte, entryPoint uint32, err error) {
	full, err := os.ReadFile(path) // #nosec G304 -- path is the CLI's own positional/-f argument
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Error().Str("path", path).Msg("bytecode file not found")
			return nil, 0, fault(FileNotFound, "open %s: %v", path, err)
		}
		log.Error().Str("path", path).Err(err).Msg("failed to read bytecode file")
		return nil, 0, fault(FileRead, "read %s: %v", path, err)
	}

	log.Debug().Int("file_size", len(full)).Msg("bytecode file read")

	if len(full) < headerSize {
		log.Error().Int("file_size", len(full)).Msg("bytecode file too small for header")
		return nil, 0, fault(InvalidFormat, "file size %d is smaller than header size %d", len(full), headerSize)
	}
	if len(full) > maxBytecodeSize {
		log.Error().Int("file_size", len(full)).Msg("bytecode file exceeds maximum size")
		return nil, 0, fault(FileTooLarge, "file size %d exceeds maximum of %d bytes", len(full), maxBytecodeSize)
	}

	if err := verifyHeader(full, log); err != nil {
		return nil, 0, err
	}

	codeSize := binary.LittleEndian.Uint32(full[headerCodeSizeOff : headerCodeSizeOff+4])
	entry := binary.LittleEndian.Uint32(full[headerEntryOff : headerEntryOff+4])

	// verifyHeader already checked header+codeSize <= len(full); codeSize
	// segment is carved out of full and copied so the temporary full-file
	// buffer can be released (goes out of scope) without the VM's buffer
	// holding a reference into it.
	segment := make([]byte, codeSize)
	copy(segment, full[headerSize:uint64(headerSize)+uint64(codeSize)])

	log.Info().Str("path", path).Int("code_size", len(segment)).Uint32("entry_point", entry).
		Msg("bytecode file loaded successfully")
	return segment, entry, nil
}

// verifyHeader validates magic, version, declared code size, and entry
// point against the already-size-checked buffer. Grounded field-for-field
// on the original C source's verify_bytecode_format.
func verifyHeader(buf []byte, log zerolog.Logger) error {
	var magic [4]byte
	copy(magic[:], buf[headerMagicOffset:headerMagicOffset+4])
	if magic != bytecodeMagic {
		log.Error().Bytes("magic", magic[:]).Msg("invalid magic number")
		return fault(InvalidFormat, "invalid magic number: % X", magic)
	}

	version := binary.LittleEndian.Uint16(buf[headerVersionOff : headerVersionOff+2])
	if version != bytecodeVersion {
		log.Error().Uint16("version", version).Msg("unsupported bytecode version")
		return fault(InvalidFormat, "unsupported version 0x%04X, expected 0x%04X", version, bytecodeVersion)
	}

	codeSize := binary.LittleEndian.Uint32(buf[headerCodeSizeOff : headerCodeSizeOff+4])
	if uint64(headerSize)+uint64(codeSize) > uint64(len(buf)) {
		log.Error().Uint32("code_size", codeSize).Int("file_size", len(buf)).
			Msg("declared code size exceeds file size")
		return fault(InvalidFormat, "declared code size %d exceeds file size %d", codeSize, len(buf))
	}

	entryPoint := binary.LittleEndian.Uint32(buf[headerEntryOff : headerEntryOff+4])
	if entryPoint >= codeSize {
		log.Error().Uint32("entry_point", entryPoint).Uint32("code_size", codeSize).
			Msg("entry point not strictly less than code size")
		return fault(InvalidFormat, "entry point %d is not less than code size %d", entryPoint, codeSize)
	}

	log.Info().Uint16("version", version).Uint32("code_size", codeSize).Uint32("entry_point", entryPoint).
		Msg("bytecode format verified")
	return nil
}
