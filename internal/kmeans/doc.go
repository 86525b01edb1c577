// Package kmeans implements k-means clustering used to train the coarse
// quantizer of inverted-file (IVF) indexes.
package kmeans
