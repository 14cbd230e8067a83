// Command mkimage builds the flat process images cmd/kernel loads: if the
// input is an ELF binary, its PT_LOAD segments are concatenated in
// address order into one contiguous image starting at the lowest
// segment's address (padding any gaps with zero bytes); anything else is
// copied through unchanged, since the loader already treats its input as
// a flat image entered at offset 0. Grounded on cmd/mips_disassemble's
// elf.Open / fall-back-to-raw pattern.
package main

import (
	"debug/elf"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

func main() {
	flag.Parse()
	if flag.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <input> <output>\n", os.Args[0])
		os.Exit(2)
	}
	in, out := flag.Arg(0), flag.Arg(1)

	img, err := buildImage(in)
	if err != nil {
		log.Fatalf("mkimage: %v", err)
	}
	if err := os.WriteFile(out, img, 0o644); err != nil {
		log.Fatalf("mkimage: writing %s: %v", out, err)
	}
	fmt.Printf("wrote %s: %d bytes\n", out, len(img))
}

// buildImage produces the flat byte image for path: ELF PT_LOAD segments
// flattened in address order, or the raw file contents if it isn't ELF.
func buildImage(path string) ([]byte, error) {
	elfFile, err := elf.Open(path)
	if err != nil {
		return os.ReadFile(path)
	}
	defer elfFile.Close()
	return flattenELF(elfFile)
}

func flattenELF(f *elf.File) ([]byte, error) {
	var loads []*elf.Prog
	var lo, hi uint64
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if len(loads) == 0 || prog.Vaddr < lo {
			lo = prog.Vaddr
		}
		if end := prog.Vaddr + prog.Filesz; end > hi {
			hi = end
		}
		loads = append(loads, prog)
	}
	if len(loads) == 0 {
		return nil, fmt.Errorf("no PT_LOAD segments found")
	}

	img := make([]byte, hi-lo)
	for _, prog := range loads {
		data := make([]byte, prog.Filesz)
		if _, err := io.ReadFull(prog.Open(), data); err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("reading segment at %#x: %w", prog.Vaddr, err)
		}
		copy(img[prog.Vaddr-lo:], data)
	}
	return img, nil
}
