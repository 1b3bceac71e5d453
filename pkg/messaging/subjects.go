package messaging

const (
	// ProductsSubjects matches every product event subject.
	ProductsSubjects = "products.>"

	ProductsAddedSubject   = "products.added"
	ProductsDeletedSubject = "products.deleted"
)
