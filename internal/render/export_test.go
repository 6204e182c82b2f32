package render

var CP1252 = cp1252
