package core

// Version is sake's own semantic version. It is written into every
// .shastore so that a store from an older tool version can be rejected
// with a StoreVersionMismatch rather than silently misread.
const Version = "1.0.0"

// StoreFileName is the name of the persistent fingerprint store.
const StoreFileName = ".shastore"

// SakefileNames is the default search order for the Sakefile, as set out
// in the original tool's constants module (sakelib/constants.py).
var SakefileNames = []string{"Sakefile", "Sakefile.yaml", "Sakefile.yml"}

// RootTargetName is the reserved name for the synthetic root listing
// implicit build roots. It is never itself a graph node.
const RootTargetName = "all"
