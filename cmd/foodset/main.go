// Package main provides the entry point for the foodset CLI.
//
// foodset extracts the images of a COCO supercategory, food by default, into a Pascal VOC style
// training set: a flat image folder, one XML annotation per image, per-category folders and a
// manifest of image paths with class indices.
//
// Usage:
//
//	foodset init
//	foodset run --data-root .. --split val2014
//	foodset history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
