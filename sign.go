package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"
)

const (
	sign_width  = 240
	sign_height = 80
	sign_border = 3
)

var (
	sign_free     = color.RGBA{0, 128, 0, 255}
	sign_occupied = color.RGBA{200, 0, 0, 255}
	sign_ink      = color.RGBA{255, 255, 255, 255}
)

// RenderRoomSign draws the door display for a room: name, state and seat
// count on a green (free) or red (occupied) panel.
func RenderRoomSign(name string, occupied bool, capacity int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, sign_width, sign_height))
	background := sign_free
	status := "AVAILABLE"
	if occupied {
		background = sign_occupied
		status = "OCCUPIED"
	}
	draw.Draw(img, img.Bounds(), image.NewUniform(sign_ink), image.Point{}, draw.Src)
	inner := image.Rect(sign_border, sign_border, sign_width-sign_border, sign_height-sign_border)
	draw.Draw(img, inner, image.NewUniform(background), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(sign_ink),
		Face: inconsolata.Bold8x16,
	}
	lines := []string{strings.ToUpper(name), status}
	if capacity > 0 {
		lines = append(lines, fmt.Sprintf("%d SEATS", capacity))
	}
	for i, line := range lines {
		d.Dot = fixed.Point26_6{X: fixed.I(12), Y: fixed.I(24 + i*20)}
		d.DrawString(line)
	}
	return img
}
