package walkcrop_test

import (
	"fmt"
	"image"
	"log"

	"github.com/sebnyberg/walkcrop"
)

func ExampleTransform() {
	src := image.NewRGBA(image.Rect(0, 0, 1000, 800))

	fill, err := walkcrop.Transform(src, walkcrop.Request{
		Region: image.Rect(100, 50, 650, 330),
	})
	if err != nil {
		log.Fatalln(err)
	}
	fit, err := walkcrop.Transform(src, walkcrop.Request{
		Region:   image.Rect(0, 0, 400, 400),
		Rotation: 90,
		Mode:     walkcrop.Fit,
	})
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Println(fill.Bounds().Size(), fit.Bounds().Size())
	// Output: (550,280) (550,280)
}

func ExampleSafeSide() {
	fmt.Println(walkcrop.SafeSide(1000, 800))
	// Output: 1416
}
