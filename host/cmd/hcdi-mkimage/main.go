// hcdi-mkimage converts WAV, FLAC or raw clips into an SD card image with
// an HCDI directory in block 0.
//
// Usage:
//
//	hcdi-mkimage [-o card.img] [-f] FILE...
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mewkiz/pkg/osutil"
	"github.com/mewkiz/pkg/pathutil"
	"github.com/pkg/errors"

	"catprotect/host/image"
)

func main() {
	var (
		// output image path
		output string
		// force overwrite of an existing image
		force bool
		// write each converted clip next to its source as well
		keepRaw bool
	)
	flag.StringVar(&output, "o", "card.img", "output image")
	flag.BoolVar(&force, "f", false, "force overwrite")
	flag.BoolVar(&keepRaw, "raw", false, "also write each converted clip as .raw")
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: hcdi-mkimage [-o card.img] [-f] FILE...")
		os.Exit(2)
	}
	if err := mkimage(output, flag.Args(), force, keepRaw); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mkimage(output string, inputs []string, force, keepRaw bool) error {
	if !force && osutil.Exists(output) {
		return errors.Errorf("image %q already present; use -f flag to force overwrite", output)
	}

	clips := make([]image.Clip, 0, len(inputs))
	for _, path := range inputs {
		p, err := image.DecodeFile(path)
		if err != nil {
			return err
		}
		clip := image.Clip{
			Name: image.ClipName(pathutil.TrimExt(filepath.Base(path)) + ".raw"),
			Data: image.Convert(p),
		}
		if keepRaw {
			rawPath := pathutil.TrimExt(path) + ".raw"
			if err := os.WriteFile(rawPath, clip.Data, 0o644); err != nil {
				return errors.WithStack(err)
			}
		}
		clips = append(clips, clip)
	}

	f, err := os.Create(output)
	if err != nil {
		return errors.WithStack(err)
	}
	records, err := image.Write(f, clips)
	if err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.WithStack(err)
	}

	for _, r := range records {
		fmt.Printf("%-32s block %6d  %8d bytes  %6.2fs\n",
			r.Name, r.StartBlock, r.Length, float64(r.Length/2)/image.SampleRate)
	}
	return nil
}
