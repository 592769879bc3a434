// Package render turns button values into display text and key images.
package render
