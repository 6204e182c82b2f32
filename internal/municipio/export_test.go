package municipio

// NamesFromDocs exposes the Mongo document mapping to tests
var NamesFromDocs = namesFromDocs
