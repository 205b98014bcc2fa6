// Package dogbone decides where relief cuts go at the interior corners of a
// planar face. It classifies corner edges, places a relief of a given
// radius (normal, minimal or mortise), and resolves the plane the relief
// starts on and the face it runs to. Materializing the relief is left to a
// feature creator; this package only emits descriptors.
package dogbone
