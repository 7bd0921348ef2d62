package main

// Book is the record kept by the demo and the shell.
type Book struct {
	Pages       int32
	PublishDate int32
}

func (Book) TypeName() string { return "book" }
