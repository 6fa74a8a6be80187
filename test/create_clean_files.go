// Command create_clean_files writes a folder of JPEGs without EXIF, one per
// supported file name pattern, for trying out organise and inspect by hand:
//
//	go run ./test [dir]
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
)

func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			b := uint8((x + y) % 255)
			img.Set(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

// Names dated only by their pattern, plus one nothing can date.
var files = []string{
	"camera/1423995630000.jpg",
	"camera/20150215_102030.jpg",
	"camera/IMG_20150216_111111.jpg",
	"camera/2015-02-17_12-12-12.jpg",
	"screenshots/Screenshot_2015-02-18_13-13-13.jpg",
	"iphone/20150219_141414123_iOS.jpg",
	"pixel/PXL_20150220_151515456.jpg",
	"pixel/20150221_161616789-COLLAGE.jpg",
	"burst/00001IMG_00001_BURST20150222171717_COVER.jpg",
	"burst/Burst_Cover_GIF_Action_20150223181818.jpg",
	"burst/Burst_Cover_Collage_20150224191919.jpg",
	"messages/IMG-20150225-WA0001.jpg",
	"misc/holiday.jpg",
}

func main() {
	root := "testdata"
	if len(os.Args) > 1 {
		root = os.Args[1]
	}

	img := createTestImage(400, 300)
	for i, name := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			fmt.Printf("Error creating %s: %v\n", filepath.Dir(path), err)
			continue
		}
		file, err := os.Create(path)
		if err != nil {
			fmt.Printf("Error creating %s: %v\n", path, err)
			continue
		}

		// Distinct quality keeps the files from being duplicates of each other.
		if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 60 + i}); err != nil {
			fmt.Printf("Error encoding %s: %v\n", path, err)
		} else {
			fmt.Printf("Created clean file: %s\n", path)
		}
		file.Close()
	}

	fmt.Printf("\nClean test files created in %s without EXIF metadata.\n", root)
	fmt.Printf("Try: mediaorganiser inspect %s\n", root)
}
