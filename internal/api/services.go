package api

// Service accessors group Client methods by resource.
// Each service embeds *Client so call sites stay short.

type ChatsService struct{ *Client }

type MessagesService struct{ *Client }

type ProfileService struct{ *Client }

func (c *Client) Chats() ChatsService {
	return ChatsService{c}
}

func (c *Client) Messages() MessagesService {
	return MessagesService{c}
}

func (c *Client) Profile() ProfileService {
	return ProfileService{c}
}
