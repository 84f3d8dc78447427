// Package filter provides the numeric image kernels shared by the extract
// and detection stages: McClellan-transformed 2D kernels, difference of
// Hanning windows, correlation/convolution with MATLAB-style padding,
// grey-level morphology and a few extract-time image helpers.
//
// 2D images and kernels are *mat.Dense indexed (y, x). Volumes are
// (y, x, z).
package filter
