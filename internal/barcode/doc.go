// Package barcode decodes QR codes printed on receipts and turns them into
// fiscal codes.
//
// The decoder is backed by gozxing and needs no cgo. Photos are converted
// to grayscale and contrast-boosted before decoding.
package barcode
