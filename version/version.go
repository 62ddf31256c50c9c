package version

// Version represents the Major.Minor.Patch version tag
// from GIT, supplied by the Makefile at link time - else 'dev'
var Version string = "dev"
