package config

const (
	//? These paths must match the paths in the embed directive

	StaticLocalDir = "static"
	StaticUrlPath  = "/" + StaticLocalDir + "/"

	TemplatesLocalDir = "templates"

	TemplateLayout = "layout.html"
	TemplateIndex  = "index.html"
	TemplateEditor = "editor.html"
)

// Collection and document paths are namespaced by the configured application
// identifier and the caller's identity. A post lives in exactly one
// identity's namespace; there is no cross-identity visibility.

func PostsCollection(appID, identity string) string {
	return "namespace/" + appID + "/identity/" + identity + "/posts"
}

func PostDocument(appID, identity, postID string) string {
	return PostsCollection(appID, identity) + "/" + postID
}
