// Package hwkey derives deterministic pipeline keys and shader names from
// the shape of a draw call.
//
// A function key is 32 bits wide and packs four 8-bit fields:
//
//	bits 24..31  custom bits (gradient layout, emoji swizzle)
//	bits 16..23  main type (geometry or fragment kind)
//	bits  8..15  sub type (the paired fragment or geometry)
//	bits  0..7   color filter
//
// A pipeline Key concatenates the vertex function key (high 32 bits) with
// the fragment function key (low 32 bits). Color filter chains that do not
// fit in 8 bits set the filter field to FilterCompose and carry the ordered
// sub-filter list out of band in Key.Compose; equality and hashing cover
// both halves.
//
// Two draws that would compile to identical pipelines produce equal keys,
// and any change of geometry, shading model or filter chain changes the key.
package hwkey
